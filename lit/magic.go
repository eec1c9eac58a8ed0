package lit

// magicStrings is the table of built-in interned strings. Common
// identifiers and property names the byte code mentions over and over
// are stored as a small numeric id instead of charset bytes.
//
// The order is part of the storage contract: ids are persisted inside
// magic-string records, so entries must only ever be appended.
var magicStrings = [][]byte{
	[]byte(""),
	[]byte("length"),
	[]byte("prototype"),
	[]byte("constructor"),
	[]byte("undefined"),
	[]byte("null"),
	[]byte("true"),
	[]byte("false"),
	[]byte("eval"),
	[]byte("arguments"),
	[]byte("this"),
	[]byte("toString"),
	[]byte("valueOf"),
	[]byte("call"),
	[]byte("apply"),
	[]byte("name"),
	[]byte("value"),
	[]byte("get"),
	[]byte("set"),
	[]byte("object"),
	[]byte("function"),
	[]byte("number"),
	[]byte("string"),
	[]byte("boolean"),
	[]byte("NaN"),
	[]byte("Infinity"),
	[]byte("Object"),
	[]byte("Array"),
	[]byte("String"),
	[]byte("Number"),
	[]byte("Boolean"),
	[]byte("Function"),
	[]byte("Math"),
	[]byte("JSON"),
	[]byte("Error"),
	[]byte("TypeError"),
	[]byte("RangeError"),
	[]byte("SyntaxError"),
	[]byte("ReferenceError"),
	[]byte("hasOwnProperty"),
	[]byte("indexOf"),
	[]byte("charAt"),
	[]byte("charCodeAt"),
	[]byte("push"),
	[]byte("pop"),
	[]byte("join"),
	[]byte("slice"),
	[]byte("splice"),
	[]byte("concat"),
	[]byte("replace"),
	[]byte("split"),
}

// findMagicString returns the id of the built-in magic string equal to
// bytes, or -1 if there is none.
func findMagicString(bytes []byte) int {
	for id, str := range magicStrings {
		if len(str) == len(bytes) && string(str) == string(bytes) {
			return id
		}
	}
	return -1
}

// SetExternalMagicStrings installs a host-supplied interned string
// table. Strings already interned as external magic records keep their
// ids, so the table must only be replaced by an extension of itself.
func (s *Store) SetExternalMagicStrings(table [][]byte) {
	s.extMagic = table
}

// findExternalMagicString returns the id of the external magic string
// equal to bytes, or -1 if there is none.
func (s *Store) findExternalMagicString(bytes []byte) int {
	for id, str := range s.extMagic {
		if len(str) == len(bytes) && string(str) == string(bytes) {
			return id
		}
	}
	return -1
}
