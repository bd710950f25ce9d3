// Package seed loads catalog and customer fixtures into the database.
package seed

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/customer"
)

// Fixture is the content of one fixture file. Categories must list parents
// before their children.
type Fixture struct {
	Categories []Category
	Products   []Product
	Variants   []Variant
	Users      []User
	Addresses  []Address
}

// Merge appends other to f.
func (f *Fixture) Merge(other *Fixture) {
	f.Categories = append(f.Categories, other.Categories...)
	f.Products = append(f.Products, other.Products...)
	f.Variants = append(f.Variants, other.Variants...)
	f.Users = append(f.Users, other.Users...)
	f.Addresses = append(f.Addresses, other.Addresses...)
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	ParentID    uuid.NullUUID
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	BasePrice   decimal.Decimal
	VATRate     decimal.Decimal
	CategoryID  uuid.NullUUID
	StockLevel  int
	Active      bool
}

type Variant struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	Value           string
	StockLevel      int
	AdditionalPrice decimal.Decimal
}

// User carries a plain-text password that is hashed before insert.
type User struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

type Address struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Street  string
	City    string
	ZipCode string
	Country string
	Type    customer.AddressType
}

// Open reads a fixture file, decompressing it when the name ends in .gz.
func Open(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open fixture")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	fx, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return fx, nil
}

// Decode parses a fixture document.
func Decode(r io.Reader) (*Fixture, error) {
	fx := &Fixture{}
	d := jx.Decode(r, 64*1024)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "categories":
			return decodeArr(d, &fx.Categories, decodeCategory)
		case "products":
			return decodeArr(d, &fx.Products, decodeProduct)
		case "variants":
			return decodeArr(d, &fx.Variants, decodeVariant)
		case "users":
			return decodeArr(d, &fx.Users, decodeUser)
		case "addresses":
			return decodeArr(d, &fx.Addresses, decodeAddress)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return fx, nil
}

func decodeArr[T any](d *jx.Decoder, dst *[]T, decode func(d *jx.Decoder) (T, error)) error {
	return d.Arr(func(d *jx.Decoder) error {
		v, err := decode(d)
		if err != nil {
			return errors.Wrapf(err, "element %d", len(*dst))
		}
		*dst = append(*dst, v)
		return nil
	})
}

func readUUID(d *jx.Decoder) (uuid.UUID, error) {
	s, err := d.Str()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

func readNullUUID(d *jx.Decoder) (uuid.NullUUID, error) {
	if d.Next() == jx.Null {
		return uuid.NullUUID{}, d.Null()
	}
	id, err := readUUID(d)
	return uuid.NullUUID{UUID: id, Valid: err == nil}, err
}

// readDecimal accepts both JSON numbers and strings.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func decodeCategory(d *jx.Decoder) (c Category, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "category_id":
			c.ID, err = readUUID(d)
		case "name":
			c.Name, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "parent_id":
			c.ParentID, err = readNullUUID(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeProduct(d *jx.Decoder) (p Product, err error) {
	p.Active = true
	p.VATRate = decimal.RequireFromString("0.23")
	err = d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "product_id":
			p.ID, err = readUUID(d)
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "base_price":
			p.BasePrice, err = readDecimal(d)
		case "vat_rate":
			p.VATRate, err = readDecimal(d)
		case "category_id":
			p.CategoryID, err = readNullUUID(d)
		case "stock_level":
			p.StockLevel, err = d.Int()
		case "is_active":
			p.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeVariant(d *jx.Decoder) (v Variant, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "variant_id":
			v.ID, err = readUUID(d)
		case "product_id":
			v.ProductID, err = readUUID(d)
		case "variant_name":
			v.Name, err = d.Str()
		case "variant_value":
			v.Value, err = d.Str()
		case "stock_level":
			v.StockLevel, err = d.Int()
		case "additional_price":
			v.AdditionalPrice, err = readDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

func decodeUser(d *jx.Decoder) (u User, err error) {
	u.Role = "customer"
	err = d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "user_id":
			u.ID, err = readUUID(d)
		case "first_name":
			u.FirstName, err = d.Str()
		case "last_name":
			u.LastName, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "password":
			u.Password, err = d.Str()
		case "role":
			u.Role, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return u, err
}

func decodeAddress(d *jx.Decoder) (a Address, err error) {
	a.Type = customer.AddressShipping
	err = d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "address_id":
			a.ID, err = readUUID(d)
		case "user_id":
			a.UserID, err = readUUID(d)
		case "street":
			a.Street, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "zip_code":
			a.ZipCode, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		case "address_type":
			var s string
			s, err = d.Str()
			a.Type = customer.AddressType(s)
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}
