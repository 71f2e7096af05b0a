package ecpay

import (
	"html/template"
	"io"
)

var autoSubmitForm = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"><title>Redirecting to payment</title></head>
  <body onload="document.forms[0].submit()">
    <form method="post" action="{{.Action}}">
{{- range .Fields}}
      <input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
    </form>
  </body>
</html>
`))

type formField struct {
	Name  string
	Value string
}

// RenderForm writes an HTML page that posts the order to the gateway on load.
func RenderForm(w io.Writer, order *Order) error {
	data := struct {
		Action string
		Fields []formField
	}{Action: order.Action}

	for _, name := range fieldOrder {
		if v, ok := order.Fields[name]; ok {
			data.Fields = append(data.Fields, formField{Name: name, Value: v})
		}
	}
	return autoSubmitForm.Execute(w, data)
}
