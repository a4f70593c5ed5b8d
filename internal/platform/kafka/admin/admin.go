// Package admin provisions Kafka topics at startup.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicSpec describes a topic to ensure.
type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// EnsureTopics creates each topic unless it already exists.
func EnsureTopics(ctx context.Context, brokers []string, specs ...TopicSpec) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer client.Close()
	adm := kadm.NewClient(client)

	for _, spec := range specs {
		resps, err := adm.CreateTopics(ctx, spec.Partitions, spec.ReplicationFactor, spec.Configs, spec.Name)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", spec.Name, err)
		}
		for _, resp := range resps {
			if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
				return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
			}
		}
	}
	return nil
}
