package sqsio

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/config"
)

// NewClients builds the queue and token service clients from config. Static
// keys are used when configured, otherwise the default provider chain.
func NewClients(cfg config.SqsConfig) (sqsiface.SQSAPI, stsiface.STSAPI, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, nil, err
	}
	return sqs.New(sess), sts.New(sess), nil
}

// NewClientFromCredential builds a queue client for a delivery loop that
// polls with temporary credentials issued by the server.
func NewClientFromCredential(cred model.TemporaryCredential, endpoint string) (sqsiface.SQSAPI, error) {
	awsCfg := aws.NewConfig().
		WithRegion(cred.Region).
		WithCredentials(credentials.NewStaticCredentials(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken))
	if endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return sqs.New(sess), nil
}
