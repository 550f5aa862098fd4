package engine

// Autofill implements the "=autofill <ColumnLabel> <length>" extension
// of spec.md §4.2: given the first four rows of a column hold valid
// integers matching one of {arithmetic progression, geometric
// progression, Fibonacci-like, constant} (checked in that precedence
// order), it writes literal integer values down to row length. Autofill
// never installs formulas or edges; this function writes only the grid
// values, and Engine.Autofill then turns each written cell's formula
// record into an integer literal and removes its old edges, leaving what
// a direct `<cell>=<int>` assignment would leave behind.
func Autofill(grid *Grid, column string, length int) error {
	col, err := parseColumnLabel(column)
	if err != nil || col < 0 || col >= grid.Cols {
		return newParseError("invalid autofill column " + column)
	}
	if length < 4 {
		return newParseError("autofill length must cover at least the first four rows")
	}
	if length > grid.Rows {
		return newParseError("autofill length exceeds grid rows")
	}

	var vals [4]int64
	for i := 0; i < 4; i++ {
		c := grid.Get(grid.Index(i, col))
		if !c.Valid || c.Kind != KindInt {
			return newParseError("autofill requires four valid integer cells to seed the pattern")
		}
		vals[i] = c.Int
	}

	switch {
	case isArithmetic(vals):
		d := vals[1] - vals[0]
		for i := 4; i < length; i++ {
			grid.Set(grid.Index(i, col), IntCell(vals[0]+int64(i)*d))
		}
	case isGeometric(vals):
		r := vals[1] / vals[0]
		prev := vals[3]
		for i := 4; i < length; i++ {
			prev *= r
			grid.Set(grid.Index(i, col), IntCell(prev))
		}
	case isFibonacciLike(vals):
		a, b := vals[2], vals[3]
		for i := 4; i < length; i++ {
			a, b = b, a+b
			grid.Set(grid.Index(i, col), IntCell(b))
		}
	case isConstant(vals):
		for i := 4; i < length; i++ {
			grid.Set(grid.Index(i, col), IntCell(vals[0]))
		}
	default:
		return newParseError("column does not match a recognized autofill pattern")
	}
	return nil
}

func isArithmetic(v [4]int64) bool {
	d := v[1] - v[0]
	return d != 0 && v[2]-v[1] == d && v[3]-v[2] == d
}

func isGeometric(v [4]int64) bool {
	if v[0] == 0 || v[1]%v[0] != 0 {
		return false
	}
	r := v[1] / v[0]
	if r == 0 || r == 1 {
		return false
	}
	return v[1]*r == v[2] && v[2]*r == v[3]
}

func isFibonacciLike(v [4]int64) bool {
	return v[2] == v[1]+v[0] && v[3] == v[2]+v[1]
}

func isConstant(v [4]int64) bool {
	return v[0] == v[1] && v[1] == v[2] && v[2] == v[3]
}
