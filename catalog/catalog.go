// Package catalog は商品・仕入先・得意先・オーナーのマスタを管理します。
package catalog

import (
	"context"
	"strings"

	"almacen/apperr"
	"almacen/config"
	"almacen/database"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Catalog struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB) *Catalog {
	return &Catalog{db: db, log: config.GetLogger()}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalid("name is required").WithDetail("name", name)
	}
	return name, nil
}

// trimOptional は空白だけの任意項目を nil にします。
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ProductInput は商品の作成・更新内容です。Stock は作成時のみ使われます。
type ProductInput struct {
	Name              string          `json:"name" validate:"required"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	Stock             int64           `json:"stock" validate:"gte=0"`
	LowStockThreshold int64           `json:"lowStockThreshold" validate:"gte=0"`
}

func (in ProductInput) product() (*model.Product, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, apperr.Invalid("price must not be negative").WithDetail("price", in.Price)
	}
	if in.LowStockThreshold < 0 {
		return nil, apperr.Invalid("threshold must not be negative").WithDetail("lowStockThreshold", in.LowStockThreshold)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "general"
	}
	return &model.Product{
		Name:              name,
		Category:          category,
		Price:             in.Price.RoundBank(2),
		Stock:             in.Stock,
		LowStockThreshold: in.LowStockThreshold,
	}, nil
}

func (c *Catalog) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	p, err := in.product()
	if err != nil {
		return nil, err
	}
	if p.Stock < 0 {
		return nil, apperr.Invalid("stock must not be negative").WithDetail("stock", p.Stock)
	}
	if err := database.CreateProduct(ctx, c.db, p); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"productId": p.ID, "name": p.Name, "stock": p.Stock}).Info("product created")
	return p, nil
}

// UpdateProduct は名前・分類・価格・閾値を更新します。在庫は変わりません。
func (c *Catalog) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*model.Product, error) {
	p, err := in.product()
	if err != nil {
		return nil, err
	}
	p.ID = id
	var updated *model.Product
	err = database.WithTx(ctx, c.db, func(tx *sqlx.Tx) error {
		if err := database.UpdateProductDetails(ctx, tx, p); err != nil {
			return err
		}
		var err error
		updated, err = database.GetProduct(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return database.GetProduct(ctx, c.db, id)
}

func (c *Catalog) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	return database.ListProducts(ctx, c.db, strings.TrimSpace(category))
}

// DeleteProduct は商品を販売明細・持分ごと削除します。仕入の記録がある商品は削除できません。
func (c *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	err := database.WithTx(ctx, c.db, func(tx *sqlx.Tx) error {
		if _, err := database.GetProduct(ctx, tx, id); err != nil {
			return err
		}
		n, err := database.CountPurchasesForProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("product %d has %d purchases", id, n).
				WithDetail("productId", id).
				WithDetail("purchases", n)
		}
		return database.DeleteProductInTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	c.log.WithField("productId", id).Info("product deleted")
	return nil
}

type SupplierInput struct {
	Name    string  `json:"name" validate:"required"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (in SupplierInput) supplier() (*model.Supplier, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	return &model.Supplier{Name: name, Phone: trimOptional(in.Phone), Address: trimOptional(in.Address)}, nil
}

func (c *Catalog) CreateSupplier(ctx context.Context, in SupplierInput) (*model.Supplier, error) {
	s, err := in.supplier()
	if err != nil {
		return nil, err
	}
	if err := database.CreateSupplier(ctx, c.db, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Catalog) UpdateSupplier(ctx context.Context, id int64, in SupplierInput) (*model.Supplier, error) {
	s, err := in.supplier()
	if err != nil {
		return nil, err
	}
	s.ID = id
	if err := database.UpdateSupplier(ctx, c.db, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Catalog) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	return database.GetAllSuppliers(ctx, c.db)
}

// DeleteSupplier は仕入先を削除します。仕入の supplier_id は NULL になります。
func (c *Catalog) DeleteSupplier(ctx context.Context, id int64) error {
	return database.WithTx(ctx, c.db, func(tx *sqlx.Tx) error {
		return database.DeleteSupplier(ctx, tx, id)
	})
}

type CustomerInput struct {
	Name      string  `json:"name" validate:"required"`
	Reference *string `json:"reference"`
	Phone     *string `json:"phone"`
}

func (in CustomerInput) customer() (*model.Customer, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	return &model.Customer{Name: name, Reference: trimOptional(in.Reference), Phone: trimOptional(in.Phone)}, nil
}

func (c *Catalog) CreateCustomer(ctx context.Context, in CustomerInput) (*model.Customer, error) {
	cu, err := in.customer()
	if err != nil {
		return nil, err
	}
	if err := database.CreateCustomer(ctx, c.db, cu); err != nil {
		return nil, err
	}
	return cu, nil
}

func (c *Catalog) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*model.Customer, error) {
	cu, err := in.customer()
	if err != nil {
		return nil, err
	}
	cu.ID = id
	if err := database.UpdateCustomer(ctx, c.db, cu); err != nil {
		return nil, err
	}
	return cu, nil
}

func (c *Catalog) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return database.GetAllCustomers(ctx, c.db)
}

// DeleteCustomer は得意先を削除します。販売の customer_id は NULL になります。
func (c *Catalog) DeleteCustomer(ctx context.Context, id int64) error {
	return database.WithTx(ctx, c.db, func(tx *sqlx.Tx) error {
		return database.DeleteCustomer(ctx, tx, id)
	})
}

type OwnerInput struct {
	Name  string  `json:"name" validate:"required"`
	Alias *string `json:"alias"`
}

func (in OwnerInput) owner() (*model.Owner, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	return &model.Owner{Name: name, Alias: trimOptional(in.Alias)}, nil
}

func (c *Catalog) CreateOwner(ctx context.Context, in OwnerInput) (*model.Owner, error) {
	o, err := in.owner()
	if err != nil {
		return nil, err
	}
	if err := database.CreateOwner(ctx, c.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (c *Catalog) UpdateOwner(ctx context.Context, id int64, in OwnerInput) (*model.Owner, error) {
	o, err := in.owner()
	if err != nil {
		return nil, err
	}
	o.ID = id
	if err := database.UpdateOwner(ctx, c.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (c *Catalog) ListOwners(ctx context.Context) ([]model.Owner, error) {
	return database.GetAllOwners(ctx, c.db)
}

// DeleteOwner はオーナーを削除します。持分が残っている間は Conflict です。
func (c *Catalog) DeleteOwner(ctx context.Context, id int64) error {
	return database.WithTx(ctx, c.db, func(tx *sqlx.Tx) error {
		n, err := database.CountSharesForOwner(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("owner %d still holds %d ownership shares", id, n).
				WithDetail("ownerId", id).
				WithDetail("shares", n)
		}
		return database.DeleteOwnerInTx(ctx, tx, id)
	})
}
