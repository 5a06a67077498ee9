package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("pubsub: GT_GCP_PROJECT_ID is not set")
	errNoTopics          = errors.New("pubsub: no topics configured")
	errNotConnected      = errors.New("pubsub: client not connected")
)

// MissingTopicError is returned when a configured topic has not been
// provisioned in the project.
type MissingTopicError struct {
	Topic string
}

func (e *MissingTopicError) Error() string {
	return fmt.Sprintf("pubsub: topic %s does not exist", e.Topic)
}

// Client wraps a Pub/Sub v2 client bound to one project and the fixed set
// of topics the outbox relay publishes to.
type Client struct {
	api     *pubsub.Client
	project string
	topics  []string
}

// NewClient connects and checks every topic exists. Topics are never
// created here; provisioning belongs to infrastructure.
func NewClient(ctx context.Context, gcp config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	names := topicNames(project, topics)
	if len(names) == 0 {
		return nil, errNoTopics
	}

	api, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{api: api, project: project, topics: names}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topics": names}), "pubsub.connected")
	return c, nil
}

// Ping looks up every configured topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errNotConnected
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.topics {
		g.Go(func() error {
			_, err := c.api.TopicAdminClient.GetTopic(gctx, &pubsubpb.GetTopicRequest{Topic: name})
			switch {
			case status.Code(err) == codes.NotFound:
				return &MissingTopicError{Topic: name}
			case err != nil:
				return fmt.Errorf("pubsub: get topic %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Publisher returns a handle for topic, which may be a short id or a full
// resource name. Nil when the client is not connected or the name is blank.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.api == nil {
		return nil
	}
	name := resourceName(c.project, topic)
	if name == "" {
		return nil
	}
	return c.api.Publisher(name)
}

// Topics lists the resolved topic resource names.
func (c *Client) Topics() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.topics)
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// topicNames resolves topics to resource names, dropping blanks and
// duplicates.
func topicNames(project string, topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		name := resourceName(project, t)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func resourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	if project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
