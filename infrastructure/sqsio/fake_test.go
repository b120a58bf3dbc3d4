package sqsio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
)

// fakeSQS models the provider's queue directory, including the post-delete
// cooldown on recreating a queue with the same name.
type fakeSQS struct {
	sqsiface.SQSAPI

	mu      sync.Mutex
	now     time.Time
	queues  map[string]map[string]*string
	deleted map[string]time.Time
	sent    []*sqs.SendMessageInput
	sendErr error
	lists   int
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{
		now:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		queues:  make(map[string]map[string]*string),
		deleted: make(map[string]time.Time),
	}
}

func (f *fakeSQS) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func fakeURL(name string) string {
	return "https://sqs.test.local/000000000000/" + name
}

func nameOf(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func (f *fakeSQS) CreateQueueWithContext(_ aws.Context, in *sqs.CreateQueueInput, _ ...request.Option) (*sqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.StringValue(in.QueueName)
	if at, ok := f.deleted[name]; ok && f.now.Sub(at) < 60*time.Second {
		return nil, awserr.New(sqs.ErrCodeQueueDeletedRecently, "You must wait 60 seconds after deleting a queue before you can create another with the same name.", nil)
	}
	f.queues[name] = in.Attributes
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(fakeURL(name))}, nil
}

func (f *fakeSQS) GetQueueUrlWithContext(_ aws.Context, in *sqs.GetQueueUrlInput, _ ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.StringValue(in.QueueName)
	if _, ok := f.queues[name]; !ok {
		return nil, awserr.New(sqs.ErrCodeQueueDoesNotExist, "The specified queue does not exist.", nil)
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(fakeURL(name))}, nil
}

func (f *fakeSQS) DeleteQueueWithContext(_ aws.Context, in *sqs.DeleteQueueInput, _ ...request.Option) (*sqs.DeleteQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := nameOf(aws.StringValue(in.QueueUrl))
	if _, ok := f.queues[name]; !ok {
		return nil, awserr.New(sqs.ErrCodeQueueDoesNotExist, "The specified queue does not exist.", nil)
	}
	delete(f.queues, name)
	f.deleted[name] = f.now
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *fakeSQS) ListQueuesPagesWithContext(_ aws.Context, in *sqs.ListQueuesInput, fn func(*sqs.ListQueuesOutput, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	f.lists++
	var urls []*string
	for name := range f.queues {
		if strings.HasPrefix(name, aws.StringValue(in.QueueNamePrefix)) {
			urls = append(urls, aws.String(fakeURL(name)))
		}
	}
	f.mu.Unlock()

	sort.Slice(urls, func(i, j int) bool { return *urls[i] < *urls[j] })

	// Two pages when there is more than one queue, to exercise pagination.
	if len(urls) > 1 {
		half := len(urls) / 2
		if !fn(&sqs.ListQueuesOutput{QueueUrls: urls[:half], NextToken: aws.String("next")}, false) {
			return nil
		}
		fn(&sqs.ListQueuesOutput{QueueUrls: urls[half:]}, true)
		return nil
	}
	fn(&sqs.ListQueuesOutput{QueueUrls: urls}, true)
	return nil
}

func (f *fakeSQS) SendMessageWithContext(_ aws.Context, in *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", len(f.sent)))}, nil
}

type fakeSTS struct {
	stsiface.STSAPI

	calls      int
	federation *sts.GetFederationTokenInput
	err        error
}

func (f *fakeSTS) credentials() *sts.Credentials {
	f.calls++
	return &sts.Credentials{
		AccessKeyId:     aws.String(fmt.Sprintf("AKIA%d", f.calls)),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      aws.Time(time.Date(2024, 1, 1, 13, 0, 0, f.calls, time.UTC)),
	}
}

func (f *fakeSTS) GetSessionTokenWithContext(_ aws.Context, _ *sts.GetSessionTokenInput, _ ...request.Option) (*sts.GetSessionTokenOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetSessionTokenOutput{Credentials: f.credentials()}, nil
}

func (f *fakeSTS) GetFederationTokenWithContext(_ aws.Context, in *sts.GetFederationTokenInput, _ ...request.Option) (*sts.GetFederationTokenOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.federation = in
	return &sts.GetFederationTokenOutput{Credentials: f.credentials()}, nil
}
