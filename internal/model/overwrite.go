package model

// OverwriteProperty is one authored value addressed by an OPath.
type OverwriteProperty struct {
	OPath string
	Value any
	File  string
	Line  int
}

// OverwriteFragment groups the properties authored for one UID.
type OverwriteFragment struct {
	UID        string
	File       string
	Line       int
	Properties []OverwriteProperty
}
