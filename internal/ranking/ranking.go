// Package ranking подбирает исполнителей для проекта по истории сделок,
// совпадению навыков, бюджету и бусту профиля. Пакет не обращается к БД.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/pkg/money"
)

// Веса составляющих оценки.
const (
	completedWeight = 45.0
	completedTarget = 8.0
	skillWeight     = 35.0
	noHistorySkill  = 10.0
	budgetWeight    = 20.0
	boostWeight     = 15.0
	DefaultLimit    = 5
	MaxLimit        = 20
)

// Candidate исполнитель, участвующий в подборе.
type Candidate struct {
	ID           uuid.UUID
	Name         string
	BoostedUntil *time.Time
}

// CompletedDeal завершённая сделка исполнителя.
type CompletedDeal struct {
	ReceiverID    uuid.UUID
	Amount        float64
	ProjectSkills []string
}

// Input всё, что нужно для подбора.
type Input struct {
	ProjectSkills []string
	Budget        float64
	Candidates    []Candidate
	Deals         []CompletedDeal
	Invited       map[uuid.UUID]struct{}
	Now           time.Time
	Limit         int
}

// Stats статистика исполнителя.
type Stats struct {
	CompletedDeals    int     `json:"completed_deals"`
	MatchedSkillDeals int     `json:"matched_skill_deals"`
	AverageAmount     float64 `json:"average_amount"`
}

// Ranked исполнитель с оценкой.
type Ranked struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	BoostedUntil   *time.Time `json:"boosted_until,omitempty"`
	IsBoosted      bool       `json:"is_boosted"`
	AlreadyInvited bool       `json:"already_invited"`
	Score          float64    `json:"score"`
	Stats          Stats      `json:"stats"`
}

// ClampLimit приводит лимит выдачи к [1, 20]. Нулевое значение даёт лимит по умолчанию.
func ClampLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeSkill приводит тег навыка к виду для сравнения.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// Rank считает оценки и возвращает отсортированный список не длиннее лимита.
func Rank(in Input) []Ranked {
	projectSkills := skillSet(in.ProjectSkills)

	dealsByFreelancer := make(map[uuid.UUID][]CompletedDeal)
	for _, d := range in.Deals {
		dealsByFreelancer[d.ReceiverID] = append(dealsByFreelancer[d.ReceiverID], d)
	}

	ranked := make([]Ranked, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		deals := dealsByFreelancer[c.ID]
		stats := collectStats(deals, projectSkills)

		boosted := c.BoostedUntil != nil && c.BoostedUntil.After(in.Now)
		score := completedScore(stats.CompletedDeals) +
			skillScore(stats, len(projectSkills)) +
			budgetScore(stats.AverageAmount, in.Budget)
		if boosted {
			score += boostWeight
		}

		_, invited := in.Invited[c.ID]
		stats.AverageAmount = money.Round2(stats.AverageAmount)

		ranked = append(ranked, Ranked{
			ID:             c.ID,
			Name:           c.Name,
			BoostedUntil:   c.BoostedUntil,
			IsBoosted:      boosted,
			AlreadyInvited: invited,
			Score:          money.Round1(score),
			Stats:          stats,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Stats.CompletedDeals > ranked[j].Stats.CompletedDeals
	})

	limit := ClampLimit(in.Limit)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func collectStats(deals []CompletedDeal, projectSkills map[string]struct{}) Stats {
	var (
		total   float64
		matched int
	)
	for _, d := range deals {
		total += d.Amount
		for _, s := range d.ProjectSkills {
			if _, ok := projectSkills[NormalizeSkill(s)]; ok {
				matched++
				break
			}
		}
	}

	stats := Stats{CompletedDeals: len(deals), MatchedSkillDeals: matched}
	if len(deals) > 0 {
		stats.AverageAmount = total / float64(len(deals))
	}
	return stats
}

func completedScore(completed int) float64 {
	return math.Min(float64(completed)/completedTarget, 1) * completedWeight
}

func skillScore(stats Stats, projectSkillCount int) float64 {
	if stats.CompletedDeals > 0 {
		return float64(stats.MatchedSkillDeals) / float64(stats.CompletedDeals) * skillWeight
	}
	if projectSkillCount == 0 {
		return noHistorySkill
	}
	return 0
}

func budgetScore(avg, budget float64) float64 {
	if avg <= 0 {
		return 0
	}
	baseline := budget
	if baseline <= 0 {
		baseline = 1
	}
	fit := 1 - math.Abs(avg-baseline)/baseline
	return math.Max(0, fit) * budgetWeight
}

func skillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if n := NormalizeSkill(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
