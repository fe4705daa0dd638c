package migrate

import "sort"

// ClassifiedRecord is a record with the flags that decide whether it is
// published.
type ClassifiedRecord struct {
	Record     Record
	IsReply    bool
	IsRetweet  bool
	IsMigrated bool
	IsSelected bool
}

// Overrides are per-record manual choices layered over the filters. They
// never re-select a record that is already migrated. A non-empty Only
// deselects every record it does not list; Exclude wins over both.
type Overrides struct {
	Only    IDSet
	Include IDSet
	Exclude IDSet
}

// Classify computes the derived flags of rec. It has no side effects.
func Classify(rec Record, settings Settings, progress Progress) ClassifiedRecord {
	isReply := rec.IsReply()
	isRetweet := rec.IsRetweet()
	isMigrated := progress.FinishedRecordIDs.Has(rec.ID)

	return ClassifiedRecord{
		Record:     rec,
		IsReply:    isReply,
		IsRetweet:  isRetweet,
		IsMigrated: isMigrated,
		IsSelected: !isMigrated &&
			(settings.IncludeReplies || !isReply) &&
			(settings.IncludeRetweets || !isRetweet),
	}
}

// ClassifyGroup classifies every record and orders them by ascending
// CreatedAt, keeping load order on ties. Replies therefore follow the posts
// they answer when both are in the group.
func ClassifyGroup(records []Record, settings Settings, progress Progress, ov Overrides) []ClassifiedRecord {
	out := make([]ClassifiedRecord, len(records))
	for i, rec := range records {
		c := Classify(rec, settings, progress)
		if !c.IsMigrated {
			switch {
			case ov.Exclude.Has(rec.ID):
				c.IsSelected = false
			case ov.Include.Has(rec.ID), ov.Only.Has(rec.ID):
				c.IsSelected = true
			case ov.Only.Len() > 0:
				c.IsSelected = false
			}
		}
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Record.CreatedAt.Before(out[j].Record.CreatedAt)
	})
	return out
}

// Counts tallies a classified group for display.
type Counts struct {
	Total    int
	Selected int
	Migrated int
	Replies  int
	Retweets int
}

func CountClassified(records []ClassifiedRecord) Counts {
	var c Counts
	c.Total = len(records)
	for _, r := range records {
		if r.IsSelected {
			c.Selected++
		}
		if r.IsMigrated {
			c.Migrated++
		}
		if r.IsReply {
			c.Replies++
		}
		if r.IsRetweet {
			c.Retweets++
		}
	}
	return c
}
