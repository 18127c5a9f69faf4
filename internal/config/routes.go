package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tgrelay/internal/domain"
)

// routesFile is the on-disk shape of routes.yaml.
type routesFile struct {
	Routes []routeEntry `yaml:"routes"`
}

type routeEntry struct {
	// ChatID is a numeric Telegram chat id or "*" for the catch-all route.
	ChatID      chatIDValue `yaml:"chat_id"`
	Comment     string      `yaml:"comment,omitempty"`
	IgnoreUsers []string    `yaml:"ignore_users,omitempty"`
	Webhooks    []string    `yaml:"webhooks"`
}

// chatIDValue accepts both quoted and unquoted chat ids ("*", "5678", 5678).
type chatIDValue string

func (c *chatIDValue) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("chat_id must be a scalar, got %v", value.Kind)
	}
	*c = chatIDValue(value.Value)
	return nil
}

// LoadRoutes parses and validates routes.yaml. Every problem here is a
// load-time error: a route that would misbehave at relay time (no targets,
// bad URL, duplicate chat) must stop the process before relaying begins.
func LoadRoutes(path string) ([]domain.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read routes file %s: %w", path, err)
	}

	var parsed routesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse routes file %s: %w", path, err)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s defines no routes", path)
	}

	var errs []string
	seen := make(map[int64]bool)
	wildcardSeen := false
	routes := make([]domain.Route, 0, len(parsed.Routes))

	for i, e := range parsed.Routes {
		r := domain.Route{
			Comment:     e.Comment,
			IgnoreUsers: e.IgnoreUsers,
			Webhooks:    e.Webhooks,
		}

		switch id := strings.TrimSpace(string(e.ChatID)); id {
		case "":
			errs = append(errs, fmt.Sprintf("routes[%d]: chat_id is required", i))
		case "*":
			if wildcardSeen {
				errs = append(errs, fmt.Sprintf("routes[%d]: duplicate wildcard route", i))
			}
			wildcardSeen = true
			r.Wildcard = true
		default:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("routes[%d]: chat_id %q is not a number or \"*\"", i, id))
				continue
			}
			if seen[n] {
				errs = append(errs, fmt.Sprintf("routes[%d]: duplicate chat_id %d", i, n))
			}
			seen[n] = true
			r.ChatID = n
		}

		if len(e.Webhooks) == 0 {
			errs = append(errs, fmt.Sprintf("routes[%d]: at least one webhook is required", i))
		}
		hookSeen := make(map[string]bool)
		for _, hook := range e.Webhooks {
			if hookSeen[hook] {
				errs = append(errs, fmt.Sprintf("routes[%d]: duplicate webhook %s", i, hook))
			}
			hookSeen[hook] = true
			if err := validateWebhookURL(hook); err != nil {
				errs = append(errs, fmt.Sprintf("routes[%d]: %v", i, err))
			}
		}

		routes = append(routes, r)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("routes validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return routes, nil
}

// routesSkeleton is the commented starter file written by the init command.
const routesSkeleton = `# Routing table: which chats forward where.
#
# chat_id:      numeric Telegram chat id, or "*" for a catch-all route.
#               An exact match always wins over the wildcard.
# ignore_users: sender handles whose messages are dropped (exact match).
# webhooks:     one or more targets; each message is posted to all of them.
#
routes:
  # - chat_id: "-1001234567890"
  #   comment: dev chat -> team channel
  #   ignore_users: [some_bot]
  #   webhooks:
  #     - https://example.com/webhooks/abc
`

// WriteRoutesSkeleton writes the starter routes file. An existing file is
// left untouched.
func WriteRoutesSkeleton(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(routesSkeleton), 0o644)
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url %q has no host", raw)
	}
	return nil
}
