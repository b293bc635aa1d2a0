// Package shop implements the product catalog, the shopping cart and its pricing rules.
package shop
