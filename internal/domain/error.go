package domain

// ErrorResponse é a estrutura padronizada para respostas de erro na API.
type ErrorResponse struct {
	Error string `json:"error" example:"Já existe um produto digital para este produto da loja."`
}

// SaveResponse é o corpo devolvido quando o produto digital é gravado.
type SaveResponse struct {
	Message string `json:"message" example:"Produto digital salvo com sucesso."`
	Status  bool   `json:"status" example:"true"`
	ID      string `json:"id,omitempty" example:"3c95b8c8-8a7e-4b55-9d0c-1f0e0f6b2a11"`
}
