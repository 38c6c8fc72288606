package query

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

// Features translates an API query string into a mongo filter and find
// options. Supported syntax: plain equality (`difficulty=easy`), range
// operators in brackets (`price[lte]=500`), comma-separated `sort` with
// `-` for descending, comma-separated `fields` projection, and
// `page`/`limit` pagination.
type Features struct {
	Filter bson.M
	Sort   bson.D
	Fields bson.M
	Page   int64
	Limit  int64
}

func Parse(values url.Values) Features {
	f := Features{
		Filter: bson.M{},
		Page:   1,
		Limit:  defaultLimit,
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if _, ok := reserved[key]; ok {
			continue
		}
		field, op := splitOperator(key)
		if op == "" {
			f.Filter[field] = coerce(vals[0])
			continue
		}
		cond, ok := f.Filter[field].(bson.M)
		if !ok {
			cond = bson.M{}
			f.Filter[field] = cond
		}
		cond[op] = coerce(vals[0])
	}

	if sortBy := values.Get("sort"); sortBy != "" {
		for _, part := range strings.Split(sortBy, ",") {
			if part == "" {
				continue
			}
			dir := 1
			if strings.HasPrefix(part, "-") {
				dir = -1
				part = part[1:]
			}
			f.Sort = append(f.Sort, bson.E{Key: part, Value: dir})
		}
	} else {
		f.Sort = bson.D{{Key: "createdAt", Value: -1}}
	}

	if fields := values.Get("fields"); fields != "" {
		f.Fields = bson.M{}
		for _, part := range strings.Split(fields, ",") {
			if part != "" {
				f.Fields[part] = 1
			}
		}
	}

	if page, err := strconv.ParseInt(values.Get("page"), 10, 64); err == nil && page > 0 {
		f.Page = page
	}
	if limit, err := strconv.ParseInt(values.Get("limit"), 10, 64); err == nil && limit > 0 {
		f.Limit = min(limit, maxLimit)
	}

	return f
}

// FindOptions renders the sort/projection/pagination part of the query.
func (f Features) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSort(f.Sort).
		SetSkip((f.Page - 1) * f.Limit).
		SetLimit(f.Limit)
	if f.Fields != nil {
		opts.SetProjection(f.Fields)
	}
	return opts
}

// splitOperator decodes `field[op]` bracket syntax; op is empty for plain
// equality keys.
func splitOperator(key string) (field, op string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	name := key[:open]
	raw := key[open+1 : len(key)-1]
	mongoOp, ok := operators[raw]
	if !ok {
		return key, ""
	}
	return name, mongoOp
}

func coerce(val string) interface{} {
	if n, err := strconv.ParseFloat(val, 64); err == nil {
		return n
	}
	return val
}
