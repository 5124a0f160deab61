package schedule

import "time"

// nextOnce parses an ISO-8601 instant and returns it once, if it is
// strictly after ref; otherwise the task is inert and there is no future
// occurrence.
func nextOnce(expr string, loc *time.Location, ref time.Time) (time.Time, error) {
	at, err := time.ParseInLocation(time.RFC3339, expr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidExpression
	}

	if !at.After(ref) {
		return time.Time{}, nil
	}
	return at, nil
}
