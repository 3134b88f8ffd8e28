// Package search mirrors the canonical ingredient table into Meilisearch for
// typo-tolerant autocomplete.
package search

import (
	"fmt"

	ms "github.com/meilisearch/meilisearch-go"
)

// newClient creates a Meilisearch client and checks that the server answers.
func newClient(host, apiKey string) (ms.ServiceManager, error) {
	client := ms.New(host, ms.WithAPIKey(apiKey))
	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("meilisearch %s unreachable: %w", host, err)
	}
	return client, nil
}

// FilterIndexVersion restricts hits to documents pushed for one index snapshot.
func FilterIndexVersion(version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("index_version = %q", version)
}
