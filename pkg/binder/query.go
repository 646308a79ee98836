package binder

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// Query binds URL query parameters into fields tagged `query:"name"`.
// Untagged fields are left alone so Query can run next to JSON.
//
//	type ConfirmRequest struct {
//		TokenHash string `query:"token_hash"`
//		Type      string `query:"type"`
//	}
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "query", r.URL.Query())
	}
}

func bindTagged(v any, tagName string, values map[string][]string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer", ErrFailedToParseQuery)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParseQuery)
	}

	rt := rv.Type()
	for i := range rv.NumField() {
		field := rv.Field(i)
		fieldType := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		tag := fieldType.Tag.Get(tagName)
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		fieldValues, ok := values[name]
		if !ok || len(fieldValues) == 0 {
			continue
		}
		if err := setFieldValue(field, fieldValues); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrFailedToParseQuery, name, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, values []string) error {
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setFieldValue(field.Elem(), values)
	}

	if field.Kind() == reflect.Slice {
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, value := range values {
			if err := setFieldValue(slice.Index(i), []string{value}); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil
	}

	value := strings.TrimSpace(values[0])
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q", value)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value %q", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s", field.Kind())
	}
	return nil
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
