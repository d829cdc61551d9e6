// Package config loads httpbridge settings from a JSON or YAML file.
//
// Files are searched for in the working directory in ConfigFilenames order.
// Missing fields keep their defaults, and boolean settings are pointers so
// an explicit false survives Merge.
package config
