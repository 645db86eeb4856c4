package loader

import (
	"testing"
)

func TestLoadFormsYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "forms.yaml", `
- name: order
  fields:
    - id: orderId
      label: Order ID
      type: INTEGER
    - id: express
      label: Express
      type: BOOLEAN
`)
	forms, err := LoadForms(path)
	if err != nil {
		t.Fatalf("LoadForms error: %v", err)
	}
	if len(forms) != 1 || forms[0].Name != "order" || len(forms[0].Fields) != 2 {
		t.Fatalf("forms = %+v", forms)
	}
	if forms[0].Fields[1].Type != FormBoolean {
		t.Errorf("type = %q", forms[0].Fields[1].Type)
	}
}

func TestLoadFormsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "forms.json",
		`[{"name":"ticket","fields":[{"id":"subject","label":"Subject","type":"TEXT"}]}]`)
	forms, err := LoadForms(path)
	if err != nil {
		t.Fatalf("LoadForms error: %v", err)
	}
	if forms[0].Fields[0].ID != "subject" {
		t.Errorf("forms = %+v", forms)
	}
}

func TestLoadFormsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"noname.yaml": "- fields: []\n",
		"dup.yaml":    "- name: a\n- name: a\n",
		"noid.yaml":   "- name: a\n  fields:\n    - label: x\n",
		"broken.json": "[{",
	}
	for name, content := range tests {
		path := writeFile(t, dir, name, content)
		if _, err := LoadForms(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDefaultForms(t *testing.T) {
	forms := DefaultForms()
	if len(forms) != 2 || forms[0].Name != "account" || forms[1].Name != "customer" {
		t.Errorf("forms = %+v", forms)
	}
}
