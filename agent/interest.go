package agent

import (
	"fmt"
	"strings"

	"github.com/motorline/dealsense/reconcile"
	"github.com/motorline/dealsense/storage"
	"github.com/motorline/dealsense/tools"
)

// InterestDomain keeps the client's car search queries in sync
type InterestDomain struct {
	registry *tools.Registry
}

func NewInterestDomain() *InterestDomain {
	return &InterestDomain{registry: tools.NewInterestRegistry()}
}

func (d *InterestDomain) Name() string           { return DomainInterest }
func (d *InterestDomain) Tools() *tools.Registry { return d.registry }

func (d *InterestDomain) Snapshot(store *storage.Storage, clientID int64) (string, error) {
	interest, err := store.GetInterest(clientID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Current car interest queries:\n")
	if interest == nil || len(interest.Queries) == 0 {
		b.WriteString("(none)\n")
	} else {
		for i, q := range interest.Queries {
			fmt.Fprintf(&b, "#%d %s\n", i, renderQuery(q))
		}
	}
	if interest != nil {
		if marks := renderManualMarks(interest.Manual); marks != "" {
			b.WriteString("\n" + marks + "\n")
		}
	}
	return b.String(), nil
}

// renderQuery prints filter fields in the canonical field order
func renderQuery(q storage.Query) string {
	var parts []string
	for _, f := range tools.QueryFields {
		if v, ok := q[f]; ok && v != nil {
			parts = append(parts, fmt.Sprintf("%s=%v", f, v))
		}
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, ", ")
}

func (d *InterestDomain) SystemPrompt(clientName, snapshot string) string {
	var b strings.Builder
	b.WriteString(promptIntro(
		"Compare the conversation transcript against the client's car interest queries and bring the list up to date.",
		clientName))
	b.WriteString(snapshot)
	b.WriteString("\nRules:\n")
	b.WriteString(commonRules + "\n")
	b.WriteString(`- Each query is one independent search the client is running. A client looking for "a BMW X5 or an Audi Q7" has two queries.
- Use add_car_interest_query for a new search, delete_car_interest_query when the client drops one.
- update_car_interest_query REPLACES the whole query at that index: pass every field the query should keep, not just the changed ones. Omitted fields are cleared.
- Indexes refer to the numbered list above.
- Only record criteria the client actually stated. Casual mentions of other cars are not searches.
- When the list matches the conversation, finish by calling confirm_all_car_interests. This final call is mandatory.
`)
	return b.String()
}

func (d *InterestDomain) Apply(store *storage.Storage, clientID int64, calls []reconcile.Call) (string, bool, error) {
	interest, err := store.GetInterest(clientID)
	if err != nil {
		return "", false, err
	}
	if interest == nil {
		interest = &storage.CarInterest{ClientID: clientID}
	}

	queries, sum := reconcile.ApplyInterests(interest.Queries, calls)
	if sum.Added == 0 && sum.Updated == 0 && sum.Deleted == 0 {
		return "no changes", false, nil
	}

	interest.Queries = queries
	if err := store.SaveInterest(interest); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("%d added, %d updated, %d deleted", sum.Added, sum.Updated, sum.Deleted), true, nil
}
