package llm

import "sort"

// CollectToolCalls reassembles streamed tool-call fragments into complete
// calls. Fragments for the same index may arrive in any order and split
// arbitrarily; ids and names overwrite when present, argument text is
// concatenated in arrival order. The result holds one call per distinct
// index, in index order.
func CollectToolCalls(deltas []ToolCallDelta) []ToolCall {
	if len(deltas) == 0 {
		return nil
	}

	partial := make(map[int]*ToolCall)
	for _, d := range deltas {
		tc, ok := partial[d.Index]
		if !ok {
			tc = &ToolCall{}
			partial[d.Index] = tc
		}
		if d.ID != "" {
			tc.ID = d.ID
		}
		if d.Name != "" {
			tc.Name = d.Name
		}
		tc.Arguments += d.Arguments
	}

	indexes := make([]int, 0, len(partial))
	for i := range partial {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		calls = append(calls, *partial[i])
	}
	return calls
}
