package afip

// Service names as registered in WSAA. A ticket issued for one service is not
// valid for another.
const (
	ServiceWSFE   = "wsfe"
	ServicePadron = "ws_sr_padron_a5"
)

// Endpoints holds the URL of each AFIP service family for one environment.
// Test doubles point these at an httptest server.
type Endpoints struct {
	WSAA   string
	WSFE   string
	Padron string
}

// EndpointsFor returns the published endpoints for env.
// Homologación and production speak the same protocol; only the hosts differ.
func EndpointsFor(env Environment) Endpoints {
	if env == EnvProduction {
		return Endpoints{
			WSAA:   "https://wsaa.afip.gov.ar/ws/services/LoginCms",
			WSFE:   "https://servicios1.afip.gov.ar/wsfev1/service.asmx",
			Padron: "https://aws.afip.gov.ar/sr-padron/webservices/personaServiceA5",
		}
	}
	return Endpoints{
		WSAA:   "https://wsaahomo.afip.gov.ar/ws/services/LoginCms",
		WSFE:   "https://wswhomo.afip.gov.ar/wsfev1/service.asmx",
		Padron: "https://awshomo.afip.gov.ar/sr-padron/webservices/personaServiceA5",
	}
}
