package sync

import (
	"sort"
	"time"

	"tablesync/core/utils"
)

// Diff compares source against target field by field and returns the
// operations that reconcile the target. It is pure: no I/O, no mutation of
// either row set. All three result lists come back in sorted key order so a
// given pair of row sets always yields the same diff.
func Diff(source, target *RowSet, fields []string) *DiffResult {
	result := &DiffResult{}

	for _, key := range source.Keys {
		srcRec, ok := source.Rows[key]
		if !ok {
			continue
		}
		tgtRec, exists := target.Rows[key]
		if !exists {
			result.ToInsert = append(result.ToInsert, key)
			continue
		}
		for _, field := range fields {
			if !valueEqual(srcRec[field], tgtRec[field]) {
				result.ToUpdate = append(result.ToUpdate, Update{Key: key, Record: srcRec})
				break
			}
		}
	}

	for _, key := range target.Keys {
		if _, exists := source.Rows[key]; !exists {
			result.ToDelete = append(result.ToDelete, key)
		}
	}

	sort.Strings(result.ToInsert)
	sort.Strings(result.ToDelete)
	sort.Slice(result.ToUpdate, func(i, j int) bool {
		return result.ToUpdate[i].Key < result.ToUpdate[j].Key
	})
	return result
}

// valueEqual compares one field value across backends. Two nulls are equal,
// numerics compare by value regardless of Go type, times compare by instant,
// and everything else compares by its string form.
func valueEqual(a, b any) bool {
	if utils.IsNull(a) || utils.IsNull(b) {
		return utils.IsNull(a) && utils.IsNull(b)
	}

	if af, aok := utils.Numeric(a); aok {
		if bf, bok := utils.Numeric(b); bok {
			return af == bf
		}
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Equal(bt)
		}
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}

	return utils.ToString(a) == utils.ToString(b)
}
