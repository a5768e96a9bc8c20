package catalog

import (
	"context"
	"net/http"

	"almacen/config"
	"almacen/locale"
	"almacen/model"
	"almacen/render"
)

// productView は商品に在庫僅少フラグを付けた表示用の形です。
type productView struct {
	model.Product
	LowStock bool `json:"lowStock"`
}

func newProductView(p model.Product) productView {
	return productView{Product: p, LowStock: p.IsLowStock()}
}

// resource はマスタ1種類分の操作です。
type resource[T any, In any] struct {
	name   string
	label  string
	list   func(ctx context.Context, r *http.Request) ([]T, error)
	get    func(ctx context.Context, id int64) (*T, error)
	create func(ctx context.Context, in In) (*T, error)
	update func(ctx context.Context, id int64, in In) (*T, error)
	remove func(ctx context.Context, id int64) error
}

// handler は GET (一覧、?id= で1件)、POST (作成)、PUT ?id= (更新)、DELETE ?id= (削除) を扱います。
func (res resource[T, In]) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("id") != "" && res.get != nil {
				id, err := render.QueryID(r, "id")
				if err != nil {
					render.Error(w, err)
					return
				}
				v, err := res.get(ctx, id)
				if err != nil {
					render.Error(w, err)
					return
				}
				render.JSON(w, http.StatusOK, v)
				return
			}
			list, err := res.list(ctx, r)
			if err != nil {
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, list)
		case http.MethodPost:
			var in In
			if err := render.DecodeJSON(r, &in); err != nil {
				render.Error(w, err)
				return
			}
			v, err := res.create(ctx, in)
			if err != nil {
				config.LogError(config.GetLogger(), "catalog", res.name, "create", in, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusCreated, v)
		case http.MethodPut:
			id, err := render.QueryID(r, "id")
			if err != nil {
				render.Error(w, err)
				return
			}
			var in In
			if err := render.DecodeJSON(r, &in); err != nil {
				render.Error(w, err)
				return
			}
			v, err := res.update(ctx, id, in)
			if err != nil {
				config.LogError(config.GetLogger(), "catalog", res.name, "update", in, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, v)
		case http.MethodDelete:
			id, err := render.QueryID(r, "id")
			if err != nil {
				render.Error(w, err)
				return
			}
			if err := res.remove(ctx, id); err != nil {
				config.LogError(config.GetLogger(), "catalog", res.name, "delete", id, err)
				render.Error(w, err)
				return
			}
			render.Message(w, http.StatusOK, "%s %d を削除しました。", locale.Sprintf(res.label), id)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
		}
	}
}

// ProductsHandler は /api/products を扱います。?category= で分類を絞り込めます。
func ProductsHandler(c *Catalog) http.HandlerFunc {
	return resource[productView, ProductInput]{
		name:  "ProductsHandler",
		label: "商品",
		list: func(ctx context.Context, r *http.Request) ([]productView, error) {
			products, err := c.ListProducts(ctx, r.URL.Query().Get("category"))
			if err != nil {
				return nil, err
			}
			views := make([]productView, len(products))
			for i, p := range products {
				views[i] = newProductView(p)
			}
			return views, nil
		},
		get: func(ctx context.Context, id int64) (*productView, error) {
			p, err := c.GetProduct(ctx, id)
			if err != nil {
				return nil, err
			}
			v := newProductView(*p)
			return &v, nil
		},
		create: func(ctx context.Context, in ProductInput) (*productView, error) {
			p, err := c.CreateProduct(ctx, in)
			if err != nil {
				return nil, err
			}
			v := newProductView(*p)
			return &v, nil
		},
		update: func(ctx context.Context, id int64, in ProductInput) (*productView, error) {
			p, err := c.UpdateProduct(ctx, id, in)
			if err != nil {
				return nil, err
			}
			v := newProductView(*p)
			return &v, nil
		},
		remove: c.DeleteProduct,
	}.handler()
}

func SuppliersHandler(c *Catalog) http.HandlerFunc {
	return resource[model.Supplier, SupplierInput]{
		name:   "SuppliersHandler",
		label:  "仕入先",
		list:   func(ctx context.Context, _ *http.Request) ([]model.Supplier, error) { return c.ListSuppliers(ctx) },
		create: c.CreateSupplier,
		update: c.UpdateSupplier,
		remove: c.DeleteSupplier,
	}.handler()
}

func CustomersHandler(c *Catalog) http.HandlerFunc {
	return resource[model.Customer, CustomerInput]{
		name:   "CustomersHandler",
		label:  "得意先",
		list:   func(ctx context.Context, _ *http.Request) ([]model.Customer, error) { return c.ListCustomers(ctx) },
		create: c.CreateCustomer,
		update: c.UpdateCustomer,
		remove: c.DeleteCustomer,
	}.handler()
}

func OwnersHandler(c *Catalog) http.HandlerFunc {
	return resource[model.Owner, OwnerInput]{
		name:   "OwnersHandler",
		label:  "オーナー",
		list:   func(ctx context.Context, _ *http.Request) ([]model.Owner, error) { return c.ListOwners(ctx) },
		create: c.CreateOwner,
		update: c.UpdateOwner,
		remove: c.DeleteOwner,
	}.handler()
}
