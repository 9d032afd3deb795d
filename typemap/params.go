package typemap

import (
	"strings"

	"plmorph/dialect"
)

// Mode is a parameter-passing mode.
type Mode int

const (
	ModeIn Mode = iota
	ModeOut
	ModeInOut
)

func (m Mode) String() string {
	switch m {
	case ModeOut:
		return "OUT"
	case ModeInOut:
		return "IN OUT"
	default:
		return "IN"
	}
}

// ParseMode reads an Oracle parameter-mode spelling. Absence of a mode
// keyword means IN.
func ParseMode(text string) Mode {
	switch strings.ToUpper(strings.Join(strings.Fields(text), " ")) {
	case "OUT":
		return ModeOut
	case "IN OUT", "INOUT":
		return ModeInOut
	default:
		return ModeIn
	}
}

// RenderParam renders one routine parameter in the target dialect's grammar.
//
// The two targets disagree on where the mode goes, which is why parameter
// conversion cannot be a pure type-substitution table. MySQL puts a mode
// keyword before the name (IN p t / OUT p t / INOUT p t). PostgreSQL uses a
// suffix convention: plain input parameters carry no keyword at all, output
// parameters get an OUT after the name, and the return-type clause is left
// alone.
func RenderParam(name string, mode Mode, typeText string, target dialect.Dialect) string {
	mapped := MapType(typeText, target)
	switch target {
	case dialect.MySQL:
		kw := "IN"
		switch mode {
		case ModeOut:
			kw = "OUT"
		case ModeInOut:
			kw = "INOUT"
		}
		return kw + " " + name + " " + mapped
	case dialect.Postgres:
		switch mode {
		case ModeOut:
			return name + " OUT " + mapped
		case ModeInOut:
			return name + " INOUT " + mapped
		default:
			return name + " " + mapped
		}
	default:
		return name + " " + mode.String() + " " + typeText
	}
}
