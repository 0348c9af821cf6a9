package models

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// Тарифы
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// DealStatus константы статусов сделок
const (
	DealStatusCreated   = "created"
	DealStatusEscrowed  = "escrowed"
	DealStatusDispute   = "dispute"
	DealStatusReleased  = "released"
	DealStatusCancelled = "cancelled"
)

// Статусы и решения по спорам
const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"

	ResolutionRelease = "release"
	ResolutionReturn  = "return"
	ResolutionPartial = "partial"
)

// Статусы заявок на выплату
const (
	PayoutStatusPending   = "pending"
	PayoutStatusProcessed = "processed"
)

// ValidResolutions список допустимых решений по спору
var ValidResolutions = map[string]struct{}{
	ResolutionRelease: {},
	ResolutionReturn:  {},
	ResolutionPartial: {},
}

// DisputableDealStatuses статусы, в которых по сделке можно открыть спор
var DisputableDealStatuses = map[string]struct{}{
	DealStatusCreated:  {},
	DealStatusEscrowed: {},
}

// NormalizePlan приводит тариф к известному значению, неизвестный считается free.
func NormalizePlan(plan string) string {
	switch plan {
	case PlanPro, PlanBusiness:
		return plan
	default:
		return PlanFree
	}
}
