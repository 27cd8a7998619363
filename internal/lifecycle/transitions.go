package lifecycle

// order is the strict startup sequence. StageError is deliberately
// excluded: it is a sink reachable from any stage in this list except
// StageUninitialized, not a member of the ordered walk itself.
var order = []Stage{
	StageUninitialized,
	StageStartingChild,
	StageChildReady,
	StageInitializingDB,
	StageDBReady,
	StageLoadingFiles,
	StageScanningFolder,
	StageReady,
}

func indexOf(s Stage) int {
	for i, v := range order {
		if v == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether moving from "from" to "to" is legal:
//   - same-state transitions are never legal, including Error->Error
//   - to == StageError is legal from any ordered stage except
//     StageUninitialized (an error can only follow an attempted spawn)
//   - from == StageError is never legal (it is terminal)
//   - otherwise "to" must be the very next stage after "from" in the
//     ordered sequence; skipping ahead or moving backwards is illegal
func CanTransition(from, to Stage) bool {
	if from == to {
		return false
	}
	if from == StageError {
		return false
	}
	if to == StageError {
		return from != StageUninitialized
	}

	fi, ti := indexOf(from), indexOf(to)
	if fi == -1 || ti == -1 {
		return false
	}
	return ti == fi+1
}
