package queue

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/example/shiki-proxy/internal/catalog"
)

// Publisher enqueues partition jobs for the backfill worker.
type Publisher struct {
	JS nats.JetStreamContext
}

func NewPublisher(nc *nats.Conn) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{JS: js}, nil
}

// EnqueuePartition publishes one (year, season) job.
func (p *Publisher) EnqueuePartition(year int, season string) error {
	if !catalog.ValidSeason(season) {
		return fmt.Errorf("queue: invalid season %q", season)
	}
	b, err := json.Marshal(PartitionJob{Year: year, Season: season})
	if err != nil {
		return err
	}
	_, err = p.JS.Publish(subjectPartition, b)
	return err
}

// EnqueueYear publishes jobs for all four seasons of one year, for the
// scheduled sync that keeps the current year fresh.
func (p *Publisher) EnqueueYear(year int) error {
	for _, season := range catalog.Seasons {
		if err := p.EnqueuePartition(year, season); err != nil {
			return err
		}
	}
	return nil
}

// EnqueuePopularityFill publishes a popularity fill job.
func (p *Publisher) EnqueuePopularityFill() error {
	_, err := p.JS.Publish(subjectPopularity, []byte("{}"))
	return err
}
