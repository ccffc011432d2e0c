package api

// Request bodies use pointers so absent fields can be told apart from zero values.

type categoryRequest struct {
	Name *string `json:"name"`
}

type itemRequest struct {
	Name       *string `json:"name"`
	Done       *bool   `json:"done"`
	CategoryID *int64  `json:"category_id"`
}

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type refreshRequest struct {
	Refresh *string `json:"refresh"`
}

type accessResponse struct {
	Access string `json:"access"`
}

type userResponse struct {
	Username string `json:"username"`
}
