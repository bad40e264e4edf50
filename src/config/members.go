package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/username/brokerbridge/src/models"
)

var ErrUnknownBrokerMapping = errors.New("no member mapping for broker")

// BrokerMembers names the family members that own the holdings imported from
// one broker account.
type BrokerMembers struct {
	Platform         string `yaml:"platform"`
	EquityMember     string `yaml:"equity_member"`
	MutualFundMember string `yaml:"mutual_fund_member"`
}

// MemberMapping is the parsed member mapping file, keyed by broker slug.
type MemberMapping struct {
	Brokers map[string]BrokerMembers `yaml:"brokers"`
}

// LoadMemberMapping reads and validates the YAML mapping at path.
func LoadMemberMapping(path string) (*MemberMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read member mapping %s: %w", path, err)
	}
	return ParseMemberMapping(data)
}

// ParseMemberMapping decodes and validates a mapping document.
func ParseMemberMapping(data []byte) (*MemberMapping, error) {
	var m MemberMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse member mapping: %w", err)
	}
	normalized := make(map[string]BrokerMembers, len(m.Brokers))
	for slug, b := range m.Brokers {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if strings.TrimSpace(b.Platform) == "" {
			return nil, fmt.Errorf("broker %q: platform is required", slug)
		}
		if _, err := uuid.Parse(b.EquityMember); err != nil {
			return nil, fmt.Errorf("broker %q: equity_member is not a uuid: %w", slug, err)
		}
		if _, err := uuid.Parse(b.MutualFundMember); err != nil {
			return nil, fmt.Errorf("broker %q: mutual_fund_member is not a uuid: %w", slug, err)
		}
		normalized[slug] = b
	}
	m.Brokers = normalized
	return &m, nil
}

// Scope builds the import scope for userID importing from the broker slug.
func (m *MemberMapping) Scope(userID, slug string) (models.ImportScope, error) {
	if m == nil {
		return models.ImportScope{}, fmt.Errorf("%w: %s", ErrUnknownBrokerMapping, slug)
	}
	b, ok := m.Brokers[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return models.ImportScope{}, fmt.Errorf("%w: %s", ErrUnknownBrokerMapping, slug)
	}
	return models.ImportScope{
		UserID:             userID,
		BrokerPlatform:     b.Platform,
		EquityMemberID:     b.EquityMember,
		MutualFundMemberID: b.MutualFundMember,
	}, nil
}
