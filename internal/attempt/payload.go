package attempt

// BuildPayload serialises the store in question order. A question without
// a record yields an empty answer; the completeness gate keeps that from
// happening on a real submit.
func BuildPayload(qs []Question, store *AnswerStore) []PayloadItem {
	out := make([]PayloadItem, 0, len(qs))
	for _, q := range qs {
		item := PayloadItem{QuestionID: q.ID, NumericID: q.NumericID}
		if rec, ok := store.Get(q.ID); ok {
			item.Answer = rec.Answer()
		}
		out = append(out, item)
	}
	return out
}
