package binding

import (
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// FormParser 表单参数解析器. Field names come from the `form` tag, then the
// `json` tag, then the lower-cased field name. Missing values fall back to
// the `default` tag.
type FormParser struct {
	tagName    string
	defaultTag string
}

// NewFormParser 创建新的表单参数解析器
func NewFormParser() *FormParser {
	return &FormParser{
		tagName:    "form",
		defaultTag: "default",
	}
}

// Parse 解析表单参数到结构体
func (fp *FormParser) Parse(values url.Values, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &BindError{
			Type:    TypeBindError,
			Message: "v must be a non-nil pointer",
		}
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return &BindError{
			Type:    TypeBindError,
			Message: "v must be a pointer to struct",
		}
	}

	return fp.parseStruct(values, rv, "")
}

// parseStruct 解析结构体
func (fp *FormParser) parseStruct(values url.Values, rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)

		// 跳过未导出的字段
		if !field.CanSet() {
			continue
		}

		name := fp.getName(fieldType, prefix)
		if name == "-" {
			continue
		}

		// 处理嵌套结构体
		if field.Kind() == reflect.Struct {
			if err := fp.parseStruct(values, field, name+"."); err != nil {
				return err
			}
			continue
		}

		// 处理指针类型的嵌套结构体
		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if fp.hasNestedParams(values, name+".") {
				if field.IsNil() {
					field.Set(reflect.New(field.Type().Elem()))
				}
				if err := fp.parseStruct(values, field.Elem(), name+"."); err != nil {
					return err
				}
			}
			continue
		}

		raw, exists := values[name]
		if !exists || len(raw) == 0 || raw[0] == "" {
			defaultValue := fieldType.Tag.Get(fp.defaultTag)
			if defaultValue == "" || !field.IsZero() {
				continue
			}
			raw = []string{defaultValue}
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}

		if err := fp.setField(field, raw, name); err != nil {
			return err
		}
	}

	return nil
}

// hasNestedParams 检查是否有嵌套参数
func (fp *FormParser) hasNestedParams(values url.Values, prefix string) bool {
	for key := range values {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// getName 获取字段对应的参数名
func (fp *FormParser) getName(fieldType reflect.StructField, prefix string) string {
	for _, tag := range []string{fp.tagName, "json"} {
		if tagName := fieldType.Tag.Get(tag); tagName != "" {
			name := strings.Split(tagName, ",")[0]
			if name == "-" {
				return "-"
			}
			return prefix + name
		}
	}
	return prefix + strings.ToLower(fieldType.Name)
}

// setField 根据字段类型设置值
func (fp *FormParser) setField(field reflect.Value, values []string, fieldName string) error {
	firstValue := strings.TrimSpace(values[0])

	switch field.Kind() {
	case reflect.String:
		field.SetString(values[0])

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(firstValue, 10, 64)
		if err != nil {
			return &BindError{
				Type:    TypeBindError,
				Field:   fieldName,
				Message: "invalid integer value: " + err.Error(),
			}
		}
		field.SetInt(intVal)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(firstValue, 10, 64)
		if err != nil {
			return &BindError{
				Type:    TypeBindError,
				Field:   fieldName,
				Message: "invalid unsigned integer value: " + err.Error(),
			}
		}
		field.SetUint(uintVal)

	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(firstValue, 64)
		if err != nil {
			return &BindError{
				Type:    TypeBindError,
				Field:   fieldName,
				Message: "invalid float value: " + err.Error(),
			}
		}
		field.SetFloat(floatVal)

	case reflect.Bool:
		boolVal, err := strconv.ParseBool(firstValue)
		if err != nil {
			return &BindError{
				Type:    TypeBindError,
				Field:   fieldName,
				Message: "invalid boolean value: " + err.Error(),
			}
		}
		field.SetBool(boolVal)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return &BindError{
				Type:    TypeBindError,
				Field:   fieldName,
				Message: "unsupported slice type: " + field.Type().String(),
			}
		}
		var items []string
		for _, v := range values {
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return &BindError{
			Type:    TypeBindError,
			Field:   fieldName,
			Message: "unsupported field type: " + field.Kind().String(),
		}
	}

	return nil
}

// Form binds the fields of a parsed multipart or urlencoded form into v and
// validates it. The form must already be parsed.
func Form(r *http.Request, v any) error {
	values := r.Form
	if r.MultipartForm != nil {
		values = url.Values(r.MultipartForm.Value)
	}
	if err := NewFormParser().Parse(values, v); err != nil {
		return err
	}
	return Validate(v)
}
