package schema

import "movieetl/internal/table"

// Movies is the declared shape of the raw movies file.
var Movies = table.Schema{
	{Name: "movieId", Type: table.Integer},
	{Name: "title", Type: table.Text},
	{Name: "genres", Type: table.Text},
}

// Ratings is the declared shape of the raw ratings file. timestamp holds epoch
// seconds.
var Ratings = table.Schema{
	{Name: "userId", Type: table.Integer},
	{Name: "movieId", Type: table.Integer},
	{Name: "rating", Type: table.Real},
	{Name: "timestamp", Type: table.Integer},
}

// GoldContract lists the columns downstream consumers of the gold tier rely
// on, in their guaranteed leading order.
var GoldContract = table.Schema{
	{Name: "movieId", Type: table.Integer},
	{Name: "title", Type: table.Text},
	{Name: "year", Type: table.Integer},
	{Name: "avgRating", Type: table.Real},
	{Name: "totalRating", Type: table.Integer},
}

// Builtin returns the declared schema registered under name, if any.
func Builtin(name string) (table.Schema, bool) {
	switch name {
	case "movies":
		return Movies.Clone(), true
	case "ratings":
		return Ratings.Clone(), true
	case "gold":
		return GoldContract.Clone(), true
	}
	return nil, false
}

// Conforms reports whether s starts with the columns of contract, with
// matching types and in order.
func Conforms(s, contract table.Schema) bool {
	if len(s) < len(contract) {
		return false
	}
	for i, c := range contract {
		if s[i] != c {
			return false
		}
	}
	return true
}
