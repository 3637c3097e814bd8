/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package view

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// CalendarConnectedPage is shown at the end of the calendar OAuth flow.
const CalendarConnectedPage = "calendar_connected.html"

// CalendarConnectedData feeds CalendarConnectedPage.
type CalendarConnectedData struct {
	Success   bool
	Message   string
	ReturnURL string
}

// HTMLTemplateManager manages HTML templates.
type HTMLTemplateManager struct {
	logger    *zap.Logger
	templates map[string]*template.Template
}

// NewHTMLTemplateManager parses the embedded templates.
func NewHTMLTemplateManager(logger *zap.Logger) (*HTMLTemplateManager, error) {
	m := &HTMLTemplateManager{
		logger:    logger.Named("html_template_manager"),
		templates: make(map[string]*template.Template),
	}

	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := path.Base(page)
		tmpl, err := template.New(name).ParseFS(templateFS, page)
		if err != nil {
			m.logger.Error("Failed to parse HTML template", zap.String("template_file", page), zap.Error(err))
			return nil, err
		}
		m.templates[name] = tmpl
	}

	m.logger.Debug("HTML templates loaded", zap.Int("count", len(m.templates)))
	return m, nil
}

// Render executes the named template with the given data and writes to the ResponseWriter.
func (m *HTMLTemplateManager) Render(w http.ResponseWriter, status int, name string, data any) error {
	tmpl, ok := m.templates[name]
	if !ok {
		m.logger.Error("Template not found", zap.String("template_name", name))
		return fs.ErrNotExist
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		m.logger.Error("Failed to render template", zap.String("template_name", name), zap.Error(err))
		return err
	}
	return nil
}
