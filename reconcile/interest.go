package reconcile

import (
	"log"
	"sort"

	"github.com/motorline/dealsense/storage"
)

// InterestSummary counts what ApplyInterests actually did
type InterestSummary struct {
	Added   int
	Updated int
	Deleted int
	Skipped int
}

// ApplyInterests applies a batch of car-interest calls to the current query
// list. Deletes go first, in descending index order, so that the indexes
// the model saw stay valid for every delete in the batch. Updates replace
// the whole query at their index. Adds append. Out-of-range indexes are
// skipped, not fatal. The input slice is not mutated.
func ApplyInterests(current []storage.Query, calls []Call) ([]storage.Query, InterestSummary) {
	queries := make([]storage.Query, len(current))
	copy(queries, current)

	var sum InterestSummary
	var deletes []int
	type update struct {
		index int
		query storage.Query
	}
	var updates []update
	var adds []storage.Query

	for _, c := range calls {
		switch c.Name {
		case "delete_car_interest_query":
			if idx, ok := getInt(c.Args, "index"); ok {
				deletes = append(deletes, int(idx))
			}
		case "update_car_interest_query":
			idx, ok := getInt(c.Args, "index")
			if !ok {
				continue
			}
			updates = append(updates, update{index: int(idx), query: queryFromArgs(c.Args)})
		case "add_car_interest_query":
			adds = append(adds, queryFromArgs(c.Args))
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(deletes)))
	for _, idx := range deletes {
		if idx < 0 || idx >= len(queries) {
			log.Printf("[Reconcile] Delete index %d out of range (%d queries), skipping", idx, len(queries))
			sum.Skipped++
			continue
		}
		queries = append(queries[:idx], queries[idx+1:]...)
		sum.Deleted++
	}

	for _, u := range updates {
		if u.index < 0 || u.index >= len(queries) {
			log.Printf("[Reconcile] Update index %d out of range (%d queries), skipping", u.index, len(queries))
			sum.Skipped++
			continue
		}
		// Full replacement: the call carries the complete query.
		queries[u.index] = u.query
		sum.Updated++
	}

	for _, q := range adds {
		queries = append(queries, q)
		sum.Added++
	}

	return queries, sum
}

// queryFromArgs keeps only recognized filter fields
func queryFromArgs(args map[string]interface{}) storage.Query {
	q := storage.Query{}
	for _, f := range queryFields {
		if v, ok := args[f]; ok && v != nil {
			q[f] = v
		}
	}
	return q
}

var queryFields = []string{
	"brand", "model", "price_min", "price_max", "year_min", "year_max",
	"mileage_max", "exterior_color", "interior_color", "engine_type",
	"drive_type", "notes",
}
