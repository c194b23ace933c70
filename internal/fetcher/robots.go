package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
}

// RobotsTxt хранит правила группы, применимой к нашему User-Agent.
type RobotsTxt struct {
	allow     []string
	disallow  []string
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: strings.ToLower(userAgent),
	}
}

func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) (bool, error) {
	host := target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.Allowed(target.EscapedPath()), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		// Не смогли собрать запрос: считаем, что можно
		return true, nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return true, nil
	}
	defer func() { _ = resp.Body.Close() }()

	var robots *RobotsTxt
	if resp.StatusCode != http.StatusOK {
		robots = &RobotsTxt{}
	} else {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		if err != nil {
			return true, nil
		}
		robots = ParseRobots(string(body), rc.userAgent)
	}
	robots.expiresAt = time.Now().Add(rc.ttl)

	rc.mu.Lock()
	rc.cache[host] = robots
	rc.mu.Unlock()

	return robots.Allowed(target.EscapedPath()), nil
}

// ParseRobots берёт группу, чей User-agent входит в наш UA, иначе группу "*".
func ParseRobots(content, userAgent string) *RobotsTxt {
	userAgent = strings.ToLower(userAgent)

	type group struct {
		agents   []string
		allow    []string
		disallow []string
	}

	var groups []*group
	var current *group
	lastWasAgent := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx > -1 {
			line = line[:idx]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if current == nil || !lastWasAgent {
				current = &group{}
				groups = append(groups, current)
			}
			current.agents = append(current.agents, strings.ToLower(value))
			lastWasAgent = true
		case "allow":
			if current != nil && value != "" {
				current.allow = append(current.allow, value)
			}
			lastWasAgent = false
		case "disallow":
			if current != nil && value != "" {
				current.disallow = append(current.disallow, value)
			}
			lastWasAgent = false
		default:
			lastWasAgent = false
		}
	}

	var wildcard *group
	for _, g := range groups {
		for _, agent := range g.agents {
			if agent == "*" {
				if wildcard == nil {
					wildcard = g
				}
				continue
			}
			if userAgent != "" && strings.Contains(userAgent, agent) {
				return &RobotsTxt{allow: g.allow, disallow: g.disallow}
			}
		}
	}
	if wildcard != nil {
		return &RobotsTxt{allow: wildcard.allow, disallow: wildcard.disallow}
	}
	return &RobotsTxt{}
}

// Allowed: побеждает самое длинное совпавшее правило, при равенстве Allow.
func (r *RobotsTxt) Allowed(path string) bool {
	if path == "" {
		path = "/"
	}

	longestAllow := longestPrefix(r.allow, path)
	longestDisallow := longestPrefix(r.disallow, path)

	if longestDisallow < 0 {
		return true
	}
	return longestAllow >= longestDisallow
}

func longestPrefix(rules []string, path string) int {
	best := -1
	for _, rule := range rules {
		if strings.HasPrefix(path, rule) && len(rule) > best {
			best = len(rule)
		}
	}
	return best
}
