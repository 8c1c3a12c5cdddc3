// Package codec maps typed preference entries onto encrypted string pairs.
//
// A logical entry (name, tag, value) is stored as
//
//	storedName  = Names.Encrypt("<tag>_<name>")
//	storedValue = Values.Encrypt(Format(tag, value))
//
// Names are encrypted with a deterministic cipher so a point lookup only needs
// to encrypt the requested name. Values use a randomized cipher.
//
// Because the tag is part of the stored name, the same logical name under two
// tags produces two independent entries. Readers that do not know the tag of
// a name have to probe every tag in Tags.
//
// String sets are joined with SetDelimiter. A member containing the delimiter
// cannot be represented and is rejected with ErrDelimiterInValue. The empty set
// and the set {""} share the same encoding and both decode to the empty set.
package codec
