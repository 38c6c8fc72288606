package query_test

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/wanderly/tour-bookings/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParse_EqualityAndOperators(t *testing.T) {
	values, err := url.ParseQuery("difficulty=easy&price[lte]=500&duration[gte]=5")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)

	if got := f.Filter["difficulty"]; got != "easy" {
		t.Errorf("expected difficulty easy, got %v", got)
	}
	if got := f.Filter["price"]; !reflect.DeepEqual(got, bson.M{"$lte": 500.0}) {
		t.Errorf("expected price $lte 500, got %v", got)
	}
	if got := f.Filter["duration"]; !reflect.DeepEqual(got, bson.M{"$gte": 5.0}) {
		t.Errorf("expected duration $gte 5, got %v", got)
	}
}

func TestParse_CombinedOperatorsOnOneField(t *testing.T) {
	values, err := url.ParseQuery("price[gte]=100&price[lte]=500")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)

	want := bson.M{"$gte": 100.0, "$lte": 500.0}
	if got := f.Filter["price"]; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParse_ReservedKeysLeaveFilterAlone(t *testing.T) {
	values, err := url.ParseQuery("page=2&sort=price&limit=10&fields=name,price")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)

	if len(f.Filter) != 0 {
		t.Errorf("expected empty filter, got %v", f.Filter)
	}
	if f.Page != 2 || f.Limit != 10 {
		t.Errorf("expected page 2 limit 10, got page %d limit %d", f.Page, f.Limit)
	}
	if !reflect.DeepEqual(f.Fields, bson.M{"name": 1, "price": 1}) {
		t.Errorf("unexpected projection %v", f.Fields)
	}
}

func TestParse_SortDirections(t *testing.T) {
	values, err := url.ParseQuery("sort=-ratingsAverage,price")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)

	want := bson.D{{Key: "ratingsAverage", Value: -1}, {Key: "price", Value: 1}}
	if !reflect.DeepEqual(f.Sort, want) {
		t.Errorf("expected sort %v, got %v", want, f.Sort)
	}
}

func TestParse_DefaultSortIsNewestFirst(t *testing.T) {
	f := query.Parse(url.Values{})

	want := bson.D{{Key: "createdAt", Value: -1}}
	if !reflect.DeepEqual(f.Sort, want) {
		t.Errorf("expected default sort %v, got %v", want, f.Sort)
	}
}

func TestParse_LimitIsCapped(t *testing.T) {
	values, err := url.ParseQuery("limit=999999")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)
	if f.Limit != 1000 {
		t.Errorf("expected limit capped at 1000, got %d", f.Limit)
	}
}

func TestParse_UnknownOperatorTreatedAsPlainKey(t *testing.T) {
	values, err := url.ParseQuery("price[near]=500")
	if err != nil {
		t.Fatal(err)
	}

	f := query.Parse(values)
	if _, ok := f.Filter["price"]; ok {
		t.Errorf("unknown operator must not produce a price condition: %v", f.Filter)
	}
	if got := f.Filter["price[near]"]; got != 500.0 {
		t.Errorf("expected literal key fallback, got %v", f.Filter)
	}
}

func TestFindOptions_Pagination(t *testing.T) {
	values, err := url.ParseQuery("page=3&limit=10")
	if err != nil {
		t.Fatal(err)
	}

	opts := query.Parse(values).FindOptions()
	if *opts.Skip != 20 {
		t.Errorf("expected skip 20, got %d", *opts.Skip)
	}
	if *opts.Limit != 10 {
		t.Errorf("expected limit 10, got %d", *opts.Limit)
	}
}
