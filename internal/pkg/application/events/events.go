package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/iot-sensor-storage/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-sensor-storage/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

const source = "github.com/diwise/iot-sensor-storage"

type Publisher interface {
	Publish(ctx context.Context, message types.Message) error
}

// sensorMessage is implemented by messages that concern a single sensor.
type sensorMessage interface {
	SensorIdentifier() string
}

type subscriber struct {
	endpoint string
	patterns []*regexp.Regexp
}

// accepts reports whether the subscriber wants messages about the given sensor. A subscriber
// without id patterns receives everything.
func (s subscriber) accepts(sensorID string) bool {
	if len(s.patterns) == 0 || sensorID == "" {
		return true
	}
	for _, p := range s.patterns {
		if p.MatchString(sensorID) {
			return true
		}
	}
	return false
}

type publisher struct {
	client      cloudevents.Client
	subscribers map[string][]subscriber
	now         func() time.Time
}

func New(cfg *Config) (Publisher, error) {
	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}

	p := &publisher{
		client:      c,
		subscribers: make(map[string][]subscriber),
		now:         time.Now,
	}

	if cfg == nil {
		return p, nil
	}

	for _, n := range cfg.Notifications {
		for _, s := range n.Subscribers {
			sub := subscriber{endpoint: s.Endpoint}
			for _, info := range s.Information {
				for _, e := range info.Entities {
					re, err := regexp.Compile(e.IDPattern)
					if err != nil {
						return nil, fmt.Errorf("notification %s: invalid id pattern %q: %w", n.ID, e.IDPattern, err)
					}
					sub.patterns = append(sub.patterns, re)
				}
			}
			p.subscribers[n.Type] = append(p.subscribers[n.Type], sub)
		}
	}

	return p, nil
}

// Publish sends the message as a cloud event to every subscriber of its topic. Delivery is
// attempted for all subscribers and the failures are returned together.
func (p *publisher) Publish(ctx context.Context, message types.Message) error {
	topic := message.TopicName()

	subscribers, ok := p.subscribers[topic]
	if !ok || len(subscribers) == 0 {
		return nil
	}

	var sensorID string
	if m, ok := message.(sensorMessage); ok {
		sensorID = m.SensorIdentifier()
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetTime(p.now().UTC())
	event.SetSource(source)
	event.SetType(topic)
	if sensorID != "" {
		event.SetSubject(sensorID)
	}

	if err := event.SetData(message.ContentType(), message); err != nil {
		return err
	}

	logger := logging.GetLoggerFromContext(ctx)

	var errs []error
	for _, s := range subscribers {
		if !s.accepts(sensorID) {
			continue
		}

		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.endpoint)

		result := p.client.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error().Err(result).Str("topic", topic).Msgf("failed to send event to %s", s.endpoint)
			errs = append(errs, fmt.Errorf("%s: %w", s.endpoint, result))
		}
	}

	return errors.Join(errs...)
}

type EntityInfo struct {
	IDPattern string `yaml:"idPattern"`
}

type RegistrationInfo struct {
	Entities []EntityInfo `yaml:"entities"`
}

type SubscriberConfig struct {
	Endpoint    string             `yaml:"endpoint"`
	Information []RegistrationInfo `yaml:"information"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
