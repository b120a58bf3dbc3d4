package metrics

// Instrument names shared by the broker, transport and jobs.
const (
	MessagesSent       = "sqs_messages_sent_total"
	SendFailures       = "sqs_send_failures_total"
	FanoutRecipients   = "broker_fanout_recipients"
	WaitTimeouts       = "broker_wait_timeouts_total"
	QueuesReaped       = "queues_reaped_total"
	CredentialsIssued  = "sqs_credentials_issued_total"
	ActiveQueueLookups = "sqs_queue_list_calls_total"

	Goroutines     = "letschat_goroutines"
	HeapAllocBytes = "letschat_heap_alloc_bytes"
	GCCycles       = "letschat_gc_cycles"
	SysBytes       = "letschat_sys_bytes"
)

// RegisterDefaults creates every instrument the service records into.
func RegisterDefaults(m Manager) {
	m.NewGauge(Goroutines, "Goroutines at scrape time")
	m.NewGauge(HeapAllocBytes, "Heap bytes allocated and in use")
	m.NewGauge(GCCycles, "Completed GC cycles")
	m.NewGauge(SysBytes, "Bytes of memory obtained from the OS")

	m.NewCounter(MessagesSent, "Envelopes accepted by the queue provider")
	m.NewCounter(SendFailures, "Envelopes the queue provider rejected")
	m.NewHistogram(FanoutRecipients, "Queues addressed per announce", 0, 1, 2, 5, 10, 25, 50, 100, 250, 500)
	m.NewCounter(WaitTimeouts, "Announces still pending when the handler stopped waiting")
	m.NewCounter(QueuesReaped, "Queues deleted by the stale queue reaper")
	m.NewCounter(CredentialsIssued, "Temporary client credentials issued")
	m.NewCounter(ActiveQueueLookups, "Provider list-queues calls made for broadcasts")
}
