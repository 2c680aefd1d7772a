package loqate

import (
	"strconv"
	"strings"

	"github.com/utafrali/storefront-validation/internal/domain"
)

// questionableFloor is the lowest match score that can still be Questionable.
const questionableFloor = 80

var goodLevels = map[string]struct{}{"P4": {}, "V4": {}, "V5": {}}

// Classify maps a match score and verification level to a status. A level
// outside P4/V4/V5 is always Invalid. With threshold <= 80 no score can be
// Questionable: it is either Valid or Invalid.
func Classify(matchScore int, level string, threshold int) domain.VerificationStatus {
	if _, ok := goodLevels[level]; !ok {
		return domain.StatusInvalid
	}
	switch {
	case matchScore >= threshold:
		return domain.StatusValid
	case matchScore >= questionableFloor:
		return domain.StatusQuestionable
	default:
		return domain.StatusInvalid
	}
}

// ParseAVC extracts the verification level and match score from an Address
// Verification Code such as "V44-I44-P6-100". The level is the first two
// characters of the first segment and the score is the last segment. ok is
// false when the last segment is not a number.
func ParseAVC(avc string) (level string, matchScore int, ok bool) {
	parts := strings.Split(avc, "-")
	level = parts[0]
	if len(level) > 2 {
		level = level[:2]
	}
	score, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return level, 0, false
	}
	return level, score, true
}

// ClassifyAVC parses avc and classifies it against threshold. An unparsable
// score is Invalid.
func ClassifyAVC(avc string, threshold int) (domain.VerificationStatus, int) {
	level, score, ok := ParseAVC(avc)
	if !ok {
		return domain.StatusInvalid, 0
	}
	return Classify(score, level, threshold), score
}
