package render

import (
	"html/template"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/standards-cli/internal/model"
)

var page = template.Must(template.New("standard").Funcs(template.FuncMap{
	"clean": Sanitize,
}).Parse(`<html><head><meta charset="utf-8"><title>FDA Standard</title></head><body>
<h1>FDA Standard Information</h1>
{{range .Fields}}<p><b>{{clean .Label}}:</b> {{clean .Value}}</p>
{{end}}<h2>Standards Development Organization</h2><ul>
{{range .SDOFields}}<li><b>{{clean .Label}}:</b> {{clean .Value}}</li>
{{end}}</ul>
</body></html>
`))

// WriteHTML renders d as an HTML document to w.
func WriteHTML(w io.Writer, d model.StandardDetail) error {
	data := struct {
		Fields    []model.DetailField
		SDOFields []model.DetailField
	}{d.Fields(), d.SDOFields()}
	if err := page.Execute(w, data); err != nil {
		return eris.Wrap(err, "render: execute html template")
	}
	return nil
}

// HTML writes d to path.
func HTML(d model.StandardDetail, path string) error {
	f, err := os.Create(path) //nolint:gosec // path is built by the pipeline
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if err := WriteHTML(f, d); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "render: close %s", path)
	}
	return nil
}

// Files renders both artifact formats to local files.
type Files struct{}

// PDF implements the artifact renderer contract.
func (Files) PDF(d model.StandardDetail, path string) error { return PDF(d, path) }

// HTML implements the artifact renderer contract.
func (Files) HTML(d model.StandardDetail, path string) error { return HTML(d, path) }
