// Copyright 2026 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package envflag parses comma-separated flag lists held in
// environment variables, such as MODLOADER_DEBUG=http,exec.
package envflag

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Init uses Parse with the contents of the given environment variable as input.
// If getenv is nil, no variable is consulted and only defaults apply.
func Init[T any](flags *T, getenv func(string) string, envVar string) error {
	var env string
	if getenv != nil {
		env = getenv(envVar)
	}
	err := Parse(flags, env)
	if err != nil {
		return fmt.Errorf("cannot parse %s: %w", envVar, err)
	}
	return nil
}

// Parse initializes the fields in flags from the attached struct field tags as
// well as the contents of the given string.
//
// The struct field tag may contain a default value other than the zero value,
// such as `envflag:"default:true"` to set a boolean field to true by default.
//
// The string may contain a comma-separated list of name=value pairs values
// representing the fields in the struct type T. If the value is omitted
// entirely for a boolean field, the value is assumed to be name=true.
//
// Names are treated case insensitively. Boolean values are parsed via [strconv.ParseBool],
// integers via [strconv.Atoi], and strings are accepted as-is.
func Parse[T any](flags *T, env string) error {
	indexByName := make(map[string]int)
	fv := reflect.ValueOf(flags).Elem()
	ft := fv.Type()
	for i := 0; i < ft.NumField(); i++ {
		field := ft.Field(i)
		name := strings.ToLower(field.Name)
		if tagStr, ok := field.Tag.Lookup("envflag"); ok {
			key, rest, _ := strings.Cut(tagStr, ":")
			if key != "default" {
				return fmt.Errorf("unknown envflag tag %q", tagStr)
			}
			val, err := parseValue(name, field.Type.Kind(), rest)
			if err != nil {
				return err
			}
			fv.Field(i).Set(reflect.ValueOf(val))
		}
		indexByName[name] = i
	}

	var errs []error
	for _, elem := range strings.Split(env, ",") {
		if elem == "" {
			// Allow empty elements so that values can be joined
			// without caring whether the previous value was empty.
			continue
		}
		name, valueStr, hasValue := strings.Cut(elem, "=")
		name = strings.ToLower(strings.TrimSpace(name))

		index, knownFlag := indexByName[name]
		if !knownFlag {
			errs = append(errs, fmt.Errorf("unknown flag %q", elem))
			continue
		}
		field := fv.Field(index)
		var val any
		switch {
		case hasValue:
			var err error
			val, err = parseValue(name, field.Kind(), valueStr)
			if err != nil {
				errs = append(errs, err)
				continue
			}
		case field.Kind() == reflect.Bool:
			// "name" is short for "name=true", like Go's -flag.
			val = true
		default:
			errs = append(errs, fmt.Errorf("value needed for %s flag %q", field.Kind(), name))
			continue
		}
		field.Set(reflect.ValueOf(val))
	}
	return errors.Join(errs...)
}

func parseValue(name string, kind reflect.Kind, str string) (val any, err error) {
	switch kind {
	case reflect.Bool:
		val, err = strconv.ParseBool(str)
	case reflect.Int:
		val, err = strconv.Atoi(str)
	case reflect.String:
		val = str
	default:
		return nil, errInvalid{fmt.Errorf("unsupported kind %s", kind)}
	}
	if err != nil {
		return nil, errInvalid{fmt.Errorf("invalid %s value for %s: %v", kind, name, err)}
	}
	return val, nil
}

// An ErrInvalid indicates a malformed input string.
var ErrInvalid = errors.New("invalid value")

type errInvalid struct{ error }

func (errInvalid) Is(err error) bool {
	return err == ErrInvalid
}
