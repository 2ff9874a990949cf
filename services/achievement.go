package services

import "sort"

// AchievementStatus is the display and eligibility status of an achievement.
type AchievementStatus string

const (
	StatusLocked     AchievementStatus = "locked"
	StatusInProgress AchievementStatus = "in-progress"
	StatusUnlocked   AchievementStatus = "unlocked"
	StatusMinted     AchievementStatus = "minted"
)

// AchievementType is a streak milestone that can be minted as an NFT.
type AchievementType struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Kind        ActivityKind `json:"kind"`
	Days        int          `json:"days"`
	// Code is the enum value understood by the minting contract.
	Code uint8 `json:"code"`
}

var achievementTypes = map[string]AchievementType{
	"journal-7": {
		ID:          "journal-7",
		Title:       "7-Day Journal Streak",
		Description: "Complete 7 consecutive days of journaling",
		Kind:        KindJournal,
		Days:        7,
		Code:        0,
	},
	"journal-30": {
		ID:          "journal-30",
		Title:       "30-Day Journal Streak",
		Description: "Complete 30 consecutive days of journaling",
		Kind:        KindJournal,
		Days:        30,
		Code:        1,
	},
	"meditation-7": {
		ID:          "meditation-7",
		Title:       "7-Day Meditation Streak",
		Description: "Complete 7 consecutive days of meditation",
		Kind:        KindMeditation,
		Days:        7,
		Code:        2,
	},
	"meditation-30": {
		ID:          "meditation-30",
		Title:       "30-Day Meditation Streak",
		Description: "Complete 30 consecutive days of meditation",
		Kind:        KindMeditation,
		Days:        30,
		Code:        3,
	},
}

// LookupAchievement returns the achievement type with the given id.
func LookupAchievement(id string) (AchievementType, bool) {
	t, ok := achievementTypes[id]
	return t, ok
}

// AchievementTypes returns every achievement type ordered by contract code.
func AchievementTypes() []AchievementType {
	out := make([]AchievementType, 0, len(achievementTypes))
	for _, t := range achievementTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Evaluation is the derived state of one achievement for one user.
type Evaluation struct {
	Type    AchievementType   `json:"type"`
	Status  AchievementStatus `json:"status"`
	Current int               `json:"current"`
	Target  int               `json:"target"`
}

// Evaluate derives the status of t from the current streak and whether it has been minted.
// Current progress is clamped to the target.
func Evaluate(streak int, t AchievementType, minted bool) Evaluation {
	ev := Evaluation{Type: t, Target: t.Days, Current: streak}
	if ev.Current > t.Days {
		ev.Current = t.Days
	}
	if ev.Current < 0 {
		ev.Current = 0
	}
	switch {
	case minted:
		ev.Status = StatusMinted
	case streak >= t.Days:
		ev.Status = StatusUnlocked
	case streak > 0:
		ev.Status = StatusInProgress
	default:
		ev.Status = StatusLocked
	}
	return ev
}
