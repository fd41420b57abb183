package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
)

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func dlqMessage(partition int32, offset int64, key, value string, headers map[string]string) *sarama.ConsumerMessage {
	msg := &sarama.ConsumerMessage{
		Partition: partition,
		Offset:    offset,
		Key:       []byte(key),
		Value:     []byte(value),
	}
	for headerKey, headerValue := range headers {
		msg.Headers = append(msg.Headers, &sarama.RecordHeader{
			Key:   []byte(headerKey),
			Value: []byte(headerValue),
		})
	}
	return msg
}

func TestExtractReplayMessage_UsesOriginHeaders(t *testing.T) {
	msg := dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, map[string]string{
		kafka.HeaderOriginalTopic: kafka.TopicOrderEvents,
		kafka.HeaderRetryCount:    "3",
		kafka.HeaderFailedAt:      "2026-08-31T10:00:00Z",
	})

	got, ok := extractReplayMessage(msg, "fallback-topic")
	if !ok {
		t.Fatal("expected replay candidate")
	}
	if got.topic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
	if got.key != "order-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}
	if string(got.value) != `{"status":"accepted"}` {
		t.Fatalf("unexpected replay value: %s", string(got.value))
	}
	if got.retryCount != "3" {
		t.Fatalf("unexpected retry count: %s", got.retryCount)
	}
	if got.failedAt != "2026-08-31T10:00:00Z" {
		t.Fatalf("unexpected failed-at: %s", got.failedAt)
	}
}

func TestExtractReplayMessage_FallbackTopic(t *testing.T) {
	msg := dlqMessage(0, 0, "order-2", `{"status":"rejected"}`, nil)

	got, ok := extractReplayMessage(msg, kafka.TopicOrderEvents)
	if !ok {
		t.Fatal("expected replay candidate")
	}
	if got.topic != kafka.TopicOrderEvents {
		t.Fatalf("expected fallback topic, got %s", got.topic)
	}
}

func TestExtractReplayMessage_EmptyValue(t *testing.T) {
	msg := dlqMessage(0, 0, "order-3", "", nil)

	if _, ok := extractReplayMessage(msg, kafka.TopicOrderEvents); ok {
		t.Fatal("expected empty message to be skipped")
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-source-topic=" + kafka.TopicDeadLetterQueue,
		"-target-topic=" + kafka.TopicOrderEvents,
		"-limit=10",
		"-execute",
		"-from-newest",
		"-idle-timeout=3s",
	}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 2 {
			t.Fatalf("unexpected brokers: %+v", cfg.brokers)
		}
		if cfg.sourceTopic != kafka.TopicDeadLetterQueue {
			t.Fatalf("unexpected source topic: %s", cfg.sourceTopic)
		}
		if cfg.targetTopic != kafka.TopicOrderEvents {
			t.Fatalf("unexpected target topic: %s", cfg.targetTopic)
		}
		if cfg.limit != 10 || !cfg.execute || !cfg.fromNewest {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.idleTimeout != 3*time.Second {
			t.Fatalf("unexpected idle timeout: %s", cfg.idleTimeout)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"-brokers=broker:9092", "-source-topic="},
		{"-brokers=broker:9092", "-target-topic="},
		{"-brokers=broker:9092", "-limit=0"},
		{"-brokers=broker:9092", "-idle-timeout=0s"},
	}

	t.Setenv("KAFKA_BROKERS", "")
	for i, args := range cases {
		withFlagArgs(t, args, func() {
			if _, err := readConfig(); err == nil {
				t.Errorf("case %d: expected validation error for args %v", i, args)
			}
		})
	}
}

func TestPublishReplay(t *testing.T) {
	if err := publishReplay(nil, replayMessage{}); err == nil {
		t.Fatal("expected nil producer error")
	}

	producer := &stubReplayProducer{}
	msg := replayMessage{topic: kafka.TopicOrderEvents, key: "order-1", value: []byte(`{}`)}
	if err := publishReplay(producer, msg); err != nil {
		t.Fatalf("publishReplay failed: %v", err)
	}
	if producer.calls != 1 || producer.lastMsg == nil {
		t.Fatalf("expected one publish, got %d", producer.calls)
	}
	if producer.lastMsg.Topic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected topic: %s", producer.lastMsg.Topic)
	}
}

func TestProcessPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, map[string]string{
					kafka.HeaderOriginalTopic: kafka.TopicOrderEvents,
				}),
				dlqMessage(0, 1, "order-2", `{"status":"rejected"}`, nil),
			}),
		},
	}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 10, idleTimeout: 50 * time.Millisecond}
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 2 || stats.replayed != 2 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProcessPartition_ExecutePublishes(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, map[string]string{
					kafka.HeaderOriginalTopic: kafka.TopicCartEvents,
				}),
			}),
		},
	}
	producer := &stubReplayProducer{}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 5, execute: true, idleTimeout: 50 * time.Millisecond}
	stats, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 5)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.replayed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if producer.lastMsg == nil || producer.lastMsg.Topic != kafka.TopicCartEvents {
		t.Fatalf("expected republish into origin topic, got %+v", producer.lastMsg)
	}
}

func TestProcessPartition_SkipsEmptyMessages(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(0, 0, "order-1", "", nil),
			}),
		},
	}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 5, idleTimeout: 50 * time.Millisecond}
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 5)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 1 || stats.skipped != 1 || stats.replayed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProcessPartition_ErrorBranches(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 5, idleTimeout: 50 * time.Millisecond}

	clientOffsetErr := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("offset")}}
	if _, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, clientOffsetErr, &stubReplayProducer{}, cfg, 0, 1); err == nil {
		t.Fatal("expected offset error")
	}

	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumerErr := &stubPartitionConsumerSource{consumeErr: errors.New("consume")}
	if _, err := processPartition(context.Background(), consumerErr, client, &stubReplayProducer{}, cfg, 0, 1); err == nil {
		t.Fatal("expected consume error")
	}

	pcWithErr := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	pcWithErr.errors <- &sarama.ConsumerError{Err: errors.New("partition error")}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: pcWithErr}}
	if _, err := processPartition(context.Background(), consumer, client, &stubReplayProducer{}, cfg, 0, 1); err == nil {
		t.Fatal("expected partition consumer error")
	}

	pcOK := closedPartitionConsumer([]*sarama.ConsumerMessage{
		dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, nil),
	})
	consumer = &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: pcOK}}
	producer := &stubReplayProducer{sendErr: errors.New("send fail")}
	executeCfg := cfg
	executeCfg.execute = true
	if _, err := processPartition(context.Background(), consumer, client, producer, executeCfg, 0, 1); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestProcessPartition_IdleTimeoutAndContext(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}

	idleConsumer := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: idleConsumer}}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 5, idleTimeout: 30 * time.Millisecond}
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 5)
	if err != nil {
		t.Fatalf("expected idle timeout to finish cleanly, got %v", err)
	}
	if stats.processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()
	canceledPC := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	canceledConsumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: canceledPC}}
	if _, err := processPartition(canceledCtx, canceledConsumer, client, nil, cfg, 0, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunReplay(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 1, idleTimeout: 20 * time.Millisecond}

	if err := runReplay(context.Background(), cfg, nil, nil, nil); err == nil {
		t.Fatal("expected missing deps error")
	}

	client := &stubOffsetClient{
		partitions: []int32{2, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			2: {oldest: 0, newest: 2},
		},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, nil),
			}),
			2: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(2, 0, "order-2", `{"status":"rejected"}`, nil),
			}),
		},
	}

	if err := runReplay(context.Background(), cfg, client, consumer, nil); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if len(consumer.calls) != 1 {
		t.Fatalf("expected one partition due limit=1, got calls=%d", len(consumer.calls))
	}
	if consumer.calls[0].partition != 0 {
		t.Fatalf("expected first sorted partition=0, got %d", consumer.calls[0].partition)
	}

	executeCfg := cfg
	executeCfg.execute = true
	if err := runReplay(context.Background(), executeCfg, client, consumer, nil); err == nil {
		t.Fatal("expected execute mode to require producer")
	}

	emptyClient := &stubOffsetClient{partitions: nil}
	if err := runReplay(context.Background(), cfg, emptyClient, consumer, nil); err != nil {
		t.Fatalf("expected nil error for empty partitions, got %v", err)
	}
}

func TestRun_UsesDependencies(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, limit: 1, idleTimeout: 20 * time.Millisecond}

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return nil, nil, nil, errors.New("deps failed")
	}
	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "deps failed") {
		t.Fatalf("expected deps error, got %v", err)
	}

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
		},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				dlqMessage(0, 0, "order-1", `{"status":"accepted"}`, nil),
			}),
		},
	}
	producer := &stubReplayProducer{}

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, producer, nil
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !client.closed || !consumer.closed || !producer.closed {
		t.Fatalf("expected all deps to be closed: client=%v consumer=%v producer=%v", client.closed, consumer.closed, producer.closed)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("boom")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"dlq-reprocess"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	errCh := make(chan *sarama.ConsumerError)
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	close(errCh)
	return &stubPartitionConsumer{messages: msgCh, errors: errCh}
}

type stubReplayProducer struct {
	sendErr error
	calls   int
	closed  bool
	lastMsg *sarama.ProducerMessage
}

func (s *stubReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	s.calls++
	s.lastMsg = msg
	if s.sendErr != nil {
		return 0, 0, s.sendErr
	}
	return 0, int64(s.calls), nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
