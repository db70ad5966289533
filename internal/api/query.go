package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

// reservedParams are query parameters that are not filter criteria.
var reservedParams = map[string]bool{
	"skip":     true,
	"limit":    true,
	"order_by": true,
	"desc":     true,
	"async":    true,
}

// parseFilter turns the query string into a Filter. A criterion is written
// field=value (equality) or field=op:value, where op is one of eq, ne, gt,
// gte, lt, lte, in, like. Values of in are comma separated.
func parseFilter(c *fiber.Ctx) (services.Filter, error) {
	f := services.Filter{
		Skip:    c.QueryInt("skip", 0),
		Limit:   c.QueryInt("limit", services.DefaultPageSize),
		OrderBy: c.Query("order_by"),
		Desc:    c.QueryBool("desc", false),
	}

	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		field := string(key)
		if reservedParams[field] {
			return
		}
		op, raw := splitCriterion(string(value))
		f = f.Where(field, op, criterionValue(op, raw))
	})
	if f.Limit < 0 || f.Skip < 0 {
		return services.Filter{}, badRequest("skip and limit must not be negative")
	}
	return f, nil
}

func splitCriterion(value string) (services.Operator, string) {
	prefix, rest, found := strings.Cut(value, ":")
	if !found {
		return services.OpEq, value
	}
	op, err := services.ParseOperator(prefix)
	if err != nil {
		// a colon inside a plain value, e.g. a timestamp
		return services.OpEq, value
	}
	return op, rest
}

func criterionValue(op services.Operator, raw string) any {
	switch op {
	case services.OpLike:
		return raw
	case services.OpIn:
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, scalarValue(p))
			}
		}
		return values
	default:
		return scalarValue(raw)
	}
}

// scalarValue keeps numbers and booleans typed so they compare against
// numeric and boolean columns on every driver.
func scalarValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	return raw
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid " + name)
	}
	return uint(id), nil
}
