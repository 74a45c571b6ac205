package adminauth

// MiddlewareAdapter exposes the service through the transport middleware's
// validator interface.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) RequireAdmin(tokenString string) error {
	_, err := a.service.RequireAdmin(tokenString)
	return err
}
