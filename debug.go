package lila

import "github.com/davecgh/go-spew/spew"

// DumpValue renders v's heap-object graph, following List elements, a
// callable's body, and an Environment's parent chain and bindings. A
// callable's captured environment is not followed. Intended for debugging GC/environment bugs, not for
// anything a script or host would parse back.
func DumpValue(v Value) string {
	return spew.Sdump(toDumpable(v))
}

// toDumpable flattens a Value into a plain Go value spew can walk without
// tripping over heapObject's unexported fields (gcColor, the linked-list
// next pointer) that would otherwise dominate the dump.
func toDumpable(v Value) interface{} {
	switch v.k {
	case KindNull:
		return nil
	case KindDouble:
		return v.AsDouble()
	case KindInt:
		return v.AsInt()
	case KindOpaque:
		return v.AsOpaque()
	case KindBigInt:
		return v.AsBigInt()
	case KindString:
		return v.AsString()
	case KindSymbol:
		return symbolDump{v.AsSymbol()}
	case KindList:
		items := v.AsList()
		out := make([]interface{}, len(items))
		for i, e := range items {
			out[i] = toDumpable(e)
		}
		return out
	case KindApplicative, KindOperative:
		c := v.AsCallable()
		return callableDump{
			Name:        c.name,
			Operative:   c.isOperative,
			Builtin:     c.builtin != nil,
			Formals:     c.formals,
			Variadic:    c.variadic,
			Body:        toDumpable(c.body),
		}
	case KindEnvironment:
		return envDump(v.AsEnvironment())
	case KindError:
		code, msg := v.AsError()
		return errorDump{Code: code.String(), Message: msg}
	default:
		invariant(false, "DumpValue: unhandled kind %s", v.k)
		return nil
	}
}

type symbolDump struct{ Name string }

type callableDump struct {
	Name      string
	Operative bool
	Builtin   bool
	Formals   []string
	Variadic  string
	Body      interface{}
}

type errorDump struct {
	Code    string
	Message string
}

func envDump(e *Environment) map[string]interface{} {
	out := make(map[string]interface{})
	if e.parent != nil {
		out["$parent"] = envDump(e.parent)
	}
	if e.bindings != nil {
		e.bindings.Iter(func(k string, val Value) (stop bool) {
			out[k] = toDumpable(val)
			return false
		})
	}
	return out
}
