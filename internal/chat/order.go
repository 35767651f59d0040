package chat

import "sort"

// SortByTime orders messages by sent time ascending, in place. The sort is
// stable: messages with equal timestamps (including two pending ones) keep
// the order they were delivered in. That tie order is reproducible given the
// same input but is not part of the store contract.
func SortByTime(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].sortTime().Before(msgs[j].sortTime())
	})
}
