package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Position pipeline: fan decoded fixes out to consumers
 *		and save them to a log file.
 *
 * Description:	Rather than saving the raw, sometimes rather cryptic
 *		and unreadable, wire format, write separated properties
 *		into CSV format for easy reading and later processing.
 *		Decoders hand positions to the pipeline on their own
 *		goroutines; a single writer goroutine keeps per-device
 *		ordering without blocking the protocol servers.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/lestrrat-go/strftime"
)

// PositionConsumer receives every decoded position, in the order each
// device reported them.
type PositionConsumer interface {
	Consume(position *Position)
}

// Pipeline queues positions to a single worker goroutine which feeds
// the registered consumers. The acknowledgement to the device has
// already been written by the time a position enters the queue.
type Pipeline struct {
	consumers []PositionConsumer
	queue     chan *Position
	done      chan struct{}
}

func NewPipeline(consumers ...PositionConsumer) *Pipeline {
	p := &Pipeline{
		consumers: consumers,
		queue:     make(chan *Position, 1024),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pipeline) run() {
	defer close(p.done)
	for position := range p.queue {
		for _, consumer := range p.consumers {
			consumer.Consume(position)
		}
	}
}

func (p *Pipeline) Consume(position *Position) {
	select {
	case p.queue <- position:
	default:
		// a stalled consumer must not back-pressure the servers
		Logger.Warn("position queue full, dropping", "device", position.DeviceID)
	}
}

// Close drains the queue and stops the worker.
func (p *Pipeline) Close() {
	close(p.queue)
	<-p.done
}

const defaultTimestampFormat = "%Y-%m-%dT%H:%M:%SZ"

// PositionLog writes one CSV row per position. The timestamp column
// uses a strftime format so existing tooling can keep its parsers.
type PositionLog struct {
	file   *os.File
	writer *csv.Writer
	format *strftime.Strftime
}

func NewPositionLog(config PositionLogConfig) (*PositionLog, error) {
	if config.Path == "" {
		return nil, nil
	}

	formatSpec := config.TimestampFormat
	if formatSpec == "" {
		formatSpec = defaultTimestampFormat
	}
	format, err := strftime.New(formatSpec)
	if err != nil {
		return nil, fmt.Errorf("timestamp format: %w", err)
	}

	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening position log: %w", err)
	}

	l := &PositionLog{file: file, writer: csv.NewWriter(file), format: format}

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		l.writer.Write([]string{
			"time", "protocol", "device", "valid", "latitude", "longitude",
			"altitude", "speed", "course", "attributes",
		})
		l.writer.Flush()
	}
	return l, nil
}

func (l *PositionLog) Consume(position *Position) {
	when := position.FixTime
	if when.IsZero() {
		when = position.ServerTime
	}

	l.writer.Write([]string{
		l.format.FormatString(when.UTC()),
		position.Protocol,
		strconv.FormatInt(position.DeviceID, 10),
		strconv.FormatBool(position.Valid),
		strconv.FormatFloat(position.Latitude(), 'f', 6, 64),
		strconv.FormatFloat(position.Longitude(), 'f', 6, 64),
		strconv.FormatFloat(position.Altitude, 'f', 1, 64),
		strconv.FormatFloat(position.Speed, 'f', 2, 64),
		strconv.FormatFloat(position.Course, 'f', 1, 64),
		formatAttributes(position.Attributes),
	})
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		Logger.Error("position log write failed", "error", err)
	}
}

func (l *PositionLog) Close() error {
	l.writer.Flush()
	return l.file.Close()
}

// formatAttributes renders the attribute bag as stable key=value
// pairs. Sorted so rows for identical reports compare equal.
func formatAttributes(attributes map[string]any) string {
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := ""
	for i, key := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", key, attributes[key])
	}
	return out
}
