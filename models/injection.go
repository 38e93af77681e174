package models

// InjectionResult is the captured return value of one injected unit.
// Result holds the JSON encoding of the value.
type InjectionResult struct {
	ScriptName string `json:"script_name" yaml:"script_name"`
	Result     string `json:"result" yaml:"result"`
}
