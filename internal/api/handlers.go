package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/todoapp/internal/identity"
	"github.com/eleven-am/todoapp/internal/todo"
)

// Pinger reports whether the backing database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the handlers delegate to
type Services struct {
	Categories *todo.Categories
	Items      *todo.Items
	Users      *identity.Users
	Tokens     *identity.Tokens
	Health     Pinger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services) {
	auth := requireUser(NewAuthenticator(svc.Tokens, svc.Users))

	e.GET("/categories", listCategories(svc.Categories), auth)
	e.POST("/categories", createCategory(svc.Categories), auth)
	e.GET("/categories/:id", getCategory(svc.Categories), auth)
	e.PATCH("/categories/:id", updateCategory(svc.Categories, false), auth)
	e.PUT("/categories/:id", updateCategory(svc.Categories, true), auth)
	e.DELETE("/categories/:id", deleteCategory(svc.Categories), auth)

	e.GET("/items", listItems(svc.Items), auth)
	e.POST("/items", createItem(svc.Items), auth)
	e.GET("/items/:id", getItem(svc.Items), auth)
	e.PATCH("/items/:id", updateItem(svc.Items, false), auth)
	e.PUT("/items/:id", updateItem(svc.Items, true), auth)
	e.DELETE("/items/:id", deleteItem(svc.Items), auth)

	e.POST("/users", createUser(svc.Users))
	e.POST("/login", login(svc.Users, svc.Tokens))
	e.POST("/token/refresh", refreshToken(svc.Tokens))
	e.POST("/logout", logout(svc.Tokens))
	e.GET("/me", getProfile(), auth)
	e.PATCH("/me", updateProfile(svc.Users, false), auth)
	e.PUT("/me", updateProfile(svc.Users, true), auth)

	e.GET("/healthz", healthz(svc.Health))
}

func healthz(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			if err := db.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}

func listCategories(categories *todo.Categories) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := categories.List(c.Request().Context(), currentUser(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	}
}

func createCategory(categories *todo.Categories) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req categoryRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		category, err := categories.Create(c.Request().Context(), currentUser(c), req.Name)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, category)
	}
}

func getCategory(categories *todo.Categories) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "category")
		if err != nil {
			return err
		}
		category, err := categories.Get(c.Request().Context(), currentUser(c), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, category)
	}
}

func updateCategory(categories *todo.Categories, full bool) echo.HandlerFunc {
	update := categories.Update
	if full {
		update = categories.Replace
	}
	return func(c echo.Context) error {
		id, err := pathID(c, "category")
		if err != nil {
			return err
		}
		var req categoryRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		category, err := update(c.Request().Context(), currentUser(c), id, req.Name)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, category)
	}
}

func deleteCategory(categories *todo.Categories) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "category")
		if err != nil {
			return err
		}
		if err := categories.Delete(c.Request().Context(), currentUser(c), id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func listItems(items *todo.Items) echo.HandlerFunc {
	return func(c echo.Context) error {
		categoryID, err := optionalQueryID(c, "category_id")
		if err != nil {
			return err
		}
		list, err := items.List(c.Request().Context(), currentUser(c), categoryID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	}
}

func createItem(items *todo.Items) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req itemRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		item, err := items.Create(c.Request().Context(), currentUser(c), todo.ItemInput{
			Name:       req.Name,
			CategoryID: req.CategoryID,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, item)
	}
}

func getItem(items *todo.Items) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "item")
		if err != nil {
			return err
		}
		item, err := items.Get(c.Request().Context(), currentUser(c), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, item)
	}
}

func updateItem(items *todo.Items, full bool) echo.HandlerFunc {
	update := items.Update
	if full {
		update = items.Replace
	}
	return func(c echo.Context) error {
		id, err := pathID(c, "item")
		if err != nil {
			return err
		}
		var req itemRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		item, err := update(c.Request().Context(), currentUser(c), id, todo.ItemPatch{
			Name:       req.Name,
			Done:       req.Done,
			CategoryID: req.CategoryID,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, item)
	}
}

func deleteItem(items *todo.Items) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "item")
		if err != nil {
			return err
		}
		if err := items.Delete(c.Request().Context(), currentUser(c), id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func createUser(users *identity.Users) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		user, err := users.CreateUser(c.Request().Context(), req.Username, req.Password)
		if err != nil {
			return conflictAsValidation(err)
		}
		return c.JSON(http.StatusCreated, userResponse{Username: user.Username})
	}
}

func login(users *identity.Users, tokens *identity.Tokens) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		username, err := requiredString("username", req.Username)
		if err != nil {
			return err
		}
		password, err := requiredString("password", req.Password)
		if err != nil {
			return err
		}

		user, err := users.VerifyCredentials(c.Request().Context(), username, password)
		if err != nil {
			return err
		}
		pair, err := tokens.IssuePair(user)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pair)
	}
}

func refreshToken(tokens *identity.Tokens) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req refreshRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		refresh, err := requiredString("refresh", req.Refresh)
		if err != nil {
			return err
		}
		access, err := tokens.Refresh(c.Request().Context(), refresh)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, accessResponse{Access: access})
	}
}

func logout(tokens *identity.Tokens) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req refreshRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		refresh, err := requiredString("refresh", req.Refresh)
		if err != nil {
			return err
		}
		if err := tokens.Revoke(c.Request().Context(), refresh); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getProfile() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, userResponse{Username: currentUser(c).Username})
	}
}

func updateProfile(users *identity.Users, full bool) echo.HandlerFunc {
	update := users.UpdateProfile
	if full {
		update = users.ReplaceProfile
	}
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		user, err := update(c.Request().Context(), currentUser(c), identity.ProfilePatch{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			return conflictAsValidation(err)
		}
		return c.JSON(http.StatusOK, userResponse{Username: user.Username})
	}
}
