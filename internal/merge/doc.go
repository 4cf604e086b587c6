// Package merge applies overwrite content onto generated models.
//
// Typed models describe their fields once through a Schema; schema-less data
// is carried in model.Bag. Both are traversed through the Node interface so
// a loosely typed overwrite bag can target a typed model directly.
package merge
