package endorser

// authRequest is the credential payload for the partner's /Auth endpoint.
type authRequest struct {
	Usuario   string `json:"usuario"`
	Senha     string `json:"senha"`
	CodigoATM string `json:"codigoatm"`
}

// authResponse carries the bearer token issued on successful login.
type authResponse struct {
	Bearer string `json:"Bearer"`
}

// rejectionEntry is one business error entry in the partner response.
type rejectionEntry struct {
	Codigo    string `json:"Codigo"`
	Descricao string `json:"Descricao"`
}

type rejectionList struct {
	Erro []rejectionEntry `json:"Erro"`
}

type insuranceData struct {
	NumeroAverbacao string `json:"NumeroAverbacao"`
}

type endorsedData struct {
	Protocolo   string          `json:"Protocolo"`
	DadosSeguro []insuranceData `json:"DadosSeguro"`
}

// endorseResponse is the partner's reply to a submission. Business errors
// arrive under Erros even alongside an HTTP 200.
type endorseResponse struct {
	Erros    *rejectionList `json:"Erros"`
	Averbado *endorsedData  `json:"Averbado"`
}

// unauthorizedResponse is the body shape of an HTTP 401 reply.
type unauthorizedResponse struct {
	Codigo    string `json:"Codigo"`
	Descricao string `json:"Descricao"`
}
