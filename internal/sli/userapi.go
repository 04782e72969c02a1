package sli

import (
	"github.com/donaldgifford/slo-reporter/pkg/reduce"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

func newUserAPI(p Params) *table {
	return &table{
		name:  "user_api",
		title: "User API",
		queries: []domain.Query{
			{
				Name:   "avg_total_request",
				Expr:   "sum(flask_http_request_total" + selector("instance", p.UserAPIInstance) + ")",
				Range:  true,
				Policy: reduce.Average,
			},
			{
				Name:   "avg_successfull_request",
				Expr:   "sum(flask_http_request_total" + selector("instance", p.UserAPIInstance, "status~", "2.*") + ")",
				Range:  true,
				Policy: reduce.Average,
			},
			{
				Name:   "avg_up_time",
				Expr:   "avg_over_time(up" + selector("instance", p.UserAPIInstance, "job", "Thoth User API Metrics") + "[" + p.interval() + "])",
				Policy: reduce.Latest,
			},
		},
		metrics: []metric{
			{column: "avg_percentage_successfull_request", label: "Successfull requests User-API (avg)", format: FormatPercent, change: true},
			{column: "avg_up_time", label: "Uptime User-API (avg)", format: FormatPercent, change: true},
		},
		evaluate: evaluateUserAPI,
	}
}

func evaluateUserAPI(raw domain.Values) domain.Values {
	success := domain.Unavailable()
	total, totalOK := raw.Get("avg_total_request").Float()
	succeeded, succeededOK := raw.Get("avg_successfull_request").Float()
	if totalOK && succeededOK {
		if total > 0 {
			success = domain.Measured(round(succeeded/total*100, 3))
		} else {
			success = domain.Measured(0)
		}
	}

	return domain.Values{
		"avg_percentage_successfull_request": success,
		"avg_up_time":                        raw.Get("avg_up_time").Map(func(f float64) float64 { return round(f*100, 3) }),
	}
}
