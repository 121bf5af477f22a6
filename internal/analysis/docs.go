package analysis

// HandlerDoc returns the handler's PHPDoc summary and deprecation flag
func HandlerDoc(r Reflector, h Handler) (string, bool) {
	if h.Kind != HandlerMethod {
		return "", false
	}
	m := r.Method(h.Class, h.Method)
	if m == nil {
		return "", false
	}
	return m.Description, m.Deprecated
}
