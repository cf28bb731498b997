// Package loader registers and loads HTTP features.
//
// Each feature implements Feature: a name, an enabled switch and a Load hook
// that registers its routes on a fiber.Router.
//
//	mgr := loader.NewManager(logger)
//	mgr.Register(catalog.NewFeature(svc))
//	if err := mgr.LoadAll(app); err != nil {
//	    return err
//	}
package loader
