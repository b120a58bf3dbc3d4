package sqsio

import (
	stderrors "errors"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
)

var (
	// ErrQueueNotFound means the user has no queue: they never logged in
	// through this channel or the queue was removed.
	ErrQueueNotFound = stderrors.New("queue not found")
	// ErrQueueDeletedRecently is the provider's post-delete cooldown. The
	// caller should ask the user to retry after a minute.
	ErrQueueDeletedRecently = stderrors.New("queue deleted recently")
	ErrMissingEvent         = stderrors.New("envelope has no event")
)

// classify maps provider error codes onto the package sentinels, keeping
// the provider detail in the message.
func classify(err error, op, queue string) error {
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if stderrors.As(err, &aerr) {
		switch aerr.Code() {
		case sqs.ErrCodeQueueDoesNotExist:
			return errors.Wrapf(ErrQueueNotFound, "%s %s: %s", op, queue, aerr.Message())
		case sqs.ErrCodeQueueDeletedRecently:
			return errors.Wrapf(ErrQueueDeletedRecently, "%s %s: %s", op, queue, aerr.Message())
		}
	}

	return errors.Wrapf(err, "%s %s", op, queue)
}

// ProviderCode returns the provider error code carried by err, if any.
func ProviderCode(err error) string {
	var aerr awserr.Error
	if stderrors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}
